package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"eneatest/internal/db"
	"eneatest/internal/models"
)

// loaddef loads a test definition from a JSON file into the SQLite store,
// assigning the next version unless one is forced.
func main() {
	var (
		jsonPath      = flag.String("json", "", "path to the definition JSON file (required)")
		dbPath        = flag.String("db", "eneatest.db", "path to the SQLite database")
		migrationsDir = flag.String("migrations", "", "override migrations directory (default: embedded)")
		defID         = flag.String("id", "", "definition id (default: id from file, or generated)")
		version       = flag.Int("version", 0, "definition version (default: next version for the id)")
		activate      = flag.Bool("activate", false, "activate this definition after loading")
		force         = flag.Bool("force", false, "replace the version if it already exists")
	)
	flag.Parse()

	if *jsonPath == "" {
		fail("missing -json")
	}
	def, err := readDefinition(*jsonPath)
	if err != nil {
		fail("read definition: %v", err)
	}
	if *defID != "" {
		def.ID = *defID
	}
	if def.ID == "" {
		def.ID = shortID(12)
	}
	if err := validateDefinition(def); err != nil {
		fail("invalid definition: %v", err)
	}

	conn, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		fail("open database: %v", err)
	}
	defer conn.Close()
	if err := db.RunMigrations(conn, *migrationsDir); err != nil {
		fail("migrations: %v", err)
	}
	store, err := db.NewSQLiteStore(conn)
	if err != nil {
		fail("store: %v", err)
	}

	if *version > 0 {
		def.Version = *version
		exists, err := store.DefinitionVersionExists(def.ID, def.Version)
		if err != nil {
			fail("check version: %v", err)
		}
		if exists && !*force {
			fail("definition %s version %d already exists (use -force to replace)", def.ID, def.Version)
		}
	} else {
		max, err := store.MaxDefinitionVersion(def.ID)
		if err != nil {
			fail("resolve version: %v", err)
		}
		def.Version = max + 1
	}

	if err := store.InsertDefinition(def, *activate, *force); err != nil {
		fail("insert definition: %v", err)
	}
	fmt.Printf("loaded definition %s version %d (%d questionnaires)\n", def.ID, def.Version, len(def.Questionnaires))
	if *activate {
		fmt.Println("definition activated")
	}
}

func readDefinition(path string) (*models.TestDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def models.TestDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func validateDefinition(def *models.TestDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if def.Scale.Min >= def.Scale.Max {
		return fmt.Errorf("scale min must be below max")
	}
	if len(def.Questionnaires) != 9 {
		return fmt.Errorf("expected 9 questionnaires, got %d", len(def.Questionnaires))
	}
	seen := make(map[int]bool, 9)
	for _, q := range def.Questionnaires {
		if q.Eneatype < 1 || q.Eneatype > 9 {
			return fmt.Errorf("questionnaire %q has eneatype %d outside 1..9", q.Title, q.Eneatype)
		}
		if seen[q.Eneatype] {
			return fmt.Errorf("duplicate eneatype %d", q.Eneatype)
		}
		seen[q.Eneatype] = true
		if len(q.Items) == 0 {
			return fmt.Errorf("questionnaire for eneatype %d has no items", q.Eneatype)
		}
		for _, it := range q.Items {
			if strings.TrimSpace(it.Text) == "" {
				return fmt.Errorf("eneatype %d has an item with empty text", q.Eneatype)
			}
		}
	}
	return nil
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
