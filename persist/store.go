// Package persist stores instances in SQLite as JSON documents. Rows
// are keyed by instance ID; loads go through the runtime's instance
// table so that every alias of a reference instance resolves to the
// same Go object.
package persist

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/jmallory/genera/runtime"
)

// ErrInstanceNotFound indicates the requested instance doesn't exist.
var ErrInstanceNotFound = errors.New("instance not found")

// Store handles SQLite storage for instances.
type Store struct {
	db     *sql.DB
	dbPath string
	rt     *runtime.Runtime
	mu     sync.Mutex
}

// Open opens (or creates) a store at the given path.
func Open(dbPath string, rt *runtime.Runtime) (*Store, error) {
	s := &Store{
		dbPath: dbPath,
		rt:     rt,
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	// Set busy timeout for concurrent access
	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		data JSON NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return s, nil
}

// OpenDefault opens a store at GENERA_DB, falling back to
// ~/.genera/instances.db.
func OpenDefault(rt *runtime.Runtime) (*Store, error) {
	dbPath := os.Getenv("GENERA_DB")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home dir: %w", err)
		}
		dbPath = filepath.Join(home, ".genera", "instances.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}
	return Open(dbPath, rt)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists an instance to the database. Reference instances
// reachable through its fields are saved too, with their rows holding
// {"_ref": id} markers; shared structure and cycles collapse to one
// row per instance.
func (s *Store) Save(inst *runtime.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(inst, map[string]bool{})
}

func (s *Store) saveLocked(inst *runtime.Instance, visited map[string]bool) error {
	if visited[inst.ID] {
		return nil
	}
	visited[inst.ID] = true

	doc := map[string]any{
		"class": inst.ClassName(),
	}
	fields := make(map[string]any)
	for _, name := range inst.FieldNames() {
		enc, nested := valueToJSON(inst.GetField(name))
		fields[name] = enc
		for _, n := range nested {
			if err := s.saveLocked(n, visited); err != nil {
				return err
			}
		}
	}
	doc["fields"] = fields

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding instance %s: %w", inst.ID, err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO instances (id, data) VALUES (?, json(?))",
		inst.ID, string(data),
	)
	if err != nil {
		return fmt.Errorf("saving instance: %w", err)
	}
	return nil
}

// Load retrieves an instance from the database. Reference instances
// already live in the runtime are returned as-is; their stored state
// is not re-read.
func (s *Store) Load(id string) (*runtime.Instance, error) {
	if inst := s.rt.Instances.Get(id); inst != nil {
		return inst, nil
	}

	var data string
	err := s.db.QueryRow("SELECT data FROM instances WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("querying instance: %w", err)
	}

	return s.instanceFromJSON(id, data)
}

func (s *Store) instanceFromJSON(id, jsonData string) (*runtime.Instance, error) {
	var raw struct {
		Class  string         `json:"class"`
		Fields map[string]any `json:"fields"`
	}
	if err := json.Unmarshal([]byte(jsonData), &raw); err != nil {
		return nil, fmt.Errorf("parsing instance JSON: %w", err)
	}
	if raw.Class == "" {
		return nil, fmt.Errorf("instance %s missing class", id)
	}
	class := s.rt.Classes.Lookup(raw.Class)
	if class == nil {
		return nil, &runtime.UnknownClassError{Name: raw.Class}
	}

	// Register before resolving fields so reference cycles terminate.
	inst := s.rt.RestoreInstance(class, id, nil)
	for name, v := range raw.Fields {
		val, err := s.valueFromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("instance %s field %s: %w", id, name, err)
		}
		runtime.RestoreField(inst, name, val)
	}
	return inst, nil
}

// valueToJSON converts a runtime value to its JSON document form and
// reports any reference instances that need rows of their own.
func valueToJSON(v runtime.Value) (any, []*runtime.Instance) {
	switch v.Type {
	case runtime.TypeNil:
		return nil, nil
	case runtime.TypeBool:
		return v.AsBool(), nil
	case runtime.TypeInt:
		return v.IntVal, nil
	case runtime.TypeFloat:
		return v.FloatVal, nil
	case runtime.TypeString:
		return v.StringVal, nil
	case runtime.TypeList:
		arr := make([]any, len(v.ListVal))
		var nested []*runtime.Instance
		for i, el := range v.ListVal {
			enc, n := valueToJSON(el)
			arr[i] = enc
			nested = append(nested, n...)
		}
		return arr, nested
	case runtime.TypeInstance:
		inst := v.InstanceVal
		if inst == nil {
			return nil, nil
		}
		if inst.Kind() == runtime.KindReference {
			return map[string]any{"_ref": inst.ID}, []*runtime.Instance{inst}
		}
		// Value instances have no independent identity; inline them.
		fields := make(map[string]any)
		var nested []*runtime.Instance
		for _, name := range inst.FieldNames() {
			enc, n := valueToJSON(inst.GetField(name))
			fields[name] = enc
			nested = append(nested, n...)
		}
		return map[string]any{
			"_class":  inst.ClassName(),
			"_id":     inst.ID,
			"_fields": fields,
		}, nested
	default:
		return nil, nil
	}
}

func (s *Store) valueFromJSON(v any) (runtime.Value, error) {
	switch x := v.(type) {
	case nil:
		return runtime.Nil, nil
	case bool:
		return runtime.BoolValue(x), nil
	case float64:
		// encoding/json gives float64 for every number; recover ints.
		if x == float64(int64(x)) {
			return runtime.IntValue(int64(x)), nil
		}
		return runtime.FloatValue(x), nil
	case string:
		return runtime.StringValue(x), nil
	case []any:
		elems := make([]runtime.Value, len(x))
		for i, el := range x {
			val, err := s.valueFromJSON(el)
			if err != nil {
				return runtime.Nil, err
			}
			elems[i] = val
		}
		return runtime.ListValue(elems), nil
	case map[string]any:
		if ref, ok := x["_ref"].(string); ok {
			inst, err := s.Load(ref)
			if err != nil {
				return runtime.Nil, fmt.Errorf("resolving ref %s: %w", ref, err)
			}
			return runtime.InstanceValue(inst), nil
		}
		return s.inlineInstanceFromJSON(x)
	default:
		return runtime.Nil, fmt.Errorf("unsupported stored value %T", v)
	}
}

func (s *Store) inlineInstanceFromJSON(x map[string]any) (runtime.Value, error) {
	className, _ := x["_class"].(string)
	if className == "" {
		return runtime.Nil, fmt.Errorf("stored object missing _class")
	}
	class := s.rt.Classes.Lookup(className)
	if class == nil {
		return runtime.Nil, &runtime.UnknownClassError{Name: className}
	}
	id, _ := x["_id"].(string)
	if id == "" {
		id = runtime.GenerateID(className)
	}
	inst := s.rt.RestoreInstance(class, id, nil)
	if fields, ok := x["_fields"].(map[string]any); ok {
		for name, fv := range fields {
			val, err := s.valueFromJSON(fv)
			if err != nil {
				return runtime.Nil, err
			}
			runtime.RestoreField(inst, name, val)
		}
	}
	return runtime.InstanceValue(inst), nil
}

// Delete removes an instance from the database and the runtime's
// instance table.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM instances WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting instance: %w", err)
	}
	s.rt.Instances.Remove(id)
	return nil
}

// FindByClass returns all stored instance IDs for a given class.
func (s *Store) FindByClass(className string) ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM instances WHERE json_extract(data, '$.class') = ?", className)
	if err != nil {
		return nil, fmt.Errorf("querying by class: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns every stored instance ID.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM instances ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying instances: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
