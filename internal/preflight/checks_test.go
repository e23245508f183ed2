package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"healthbot/internal/config"
	"healthbot/internal/database"
)

func setupPreflightTest(t *testing.T, initialize bool) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "preflight.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if initialize {
		if err := db.Initialize(); err != nil {
			t.Fatalf("Failed to initialize test database: %v", err)
		}
	}
	return db
}

func TestCheckDatabaseConnection_Success(t *testing.T) {
	checker := NewChecker(setupPreflightTest(t, true), &config.Config{})
	result := checker.checkDatabaseConnection()

	if result.Status != "pass" {
		t.Errorf("Expected status 'pass', got '%s'", result.Status)
	}
	if result.Name != "Database Connection" {
		t.Errorf("Expected name 'Database Connection', got '%s'", result.Name)
	}
}

func TestCheckDatabaseConnection_Failure(t *testing.T) {
	db := setupPreflightTest(t, true)
	db.Close() // simulate a lost connection

	result := NewChecker(db, &config.Config{}).checkDatabaseConnection()

	if result.Status != "fail" {
		t.Errorf("Expected status 'fail', got '%s'", result.Status)
	}
	if result.Error == nil {
		t.Error("Expected error to be set")
	}
}

func TestCheckDatabaseSchema(t *testing.T) {
	if got := NewChecker(setupPreflightTest(t, true), &config.Config{}).checkDatabaseSchema(); got.Status != "pass" {
		t.Errorf("Expected status 'pass', got '%s': %s", got.Status, got.Message)
	}

	got := NewChecker(setupPreflightTest(t, false), &config.Config{}).checkDatabaseSchema()
	if got.Status != "fail" {
		t.Errorf("Expected status 'fail' on uninitialized database, got '%s'", got.Status)
	}
	if got.Error == nil {
		t.Error("Expected error to be set")
	}
}

func TestCheckKnowledgeSeedFile(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yaml")
	invalid := filepath.Join(dir, "invalid.yaml")

	if err := os.WriteFile(valid, []byte("tips:\n  - id: t1\n    text: Walk daily.\n    category: lifestyle\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(invalid, []byte("tips: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want string
	}{
		{"", "pass"},
		{valid, "pass"},
		{invalid, "fail"},
		{filepath.Join(dir, "missing.yaml"), "fail"},
	}

	db := setupPreflightTest(t, true)
	for _, tt := range tests {
		result := NewChecker(db, &config.Config{KnowledgeSeedFile: tt.path}).checkKnowledgeSeedFile()
		if result.Status != tt.want {
			t.Errorf("seed %q: expected status '%s', got '%s' (%s)", tt.path, tt.want, result.Status, result.Message)
		}
	}
}

func TestCredentialChecksWarnOnly(t *testing.T) {
	checker := NewChecker(setupPreflightTest(t, true), &config.Config{})

	for _, result := range []CheckResult{
		checker.checkModelCredentials(),
		checker.checkResearchCredentials(),
		checker.checkChannels(),
	} {
		if result.Status != "warning" {
			t.Errorf("%s: expected 'warning', got '%s'", result.Name, result.Status)
		}
	}

	configured := NewChecker(checker.db, &config.Config{
		GoogleAPIKey:     "key",
		ResearchAPIKey:   "key",
		TelegramBotToken: "token",
	})
	for _, result := range []CheckResult{
		configured.checkModelCredentials(),
		configured.checkResearchCredentials(),
		configured.checkChannels(),
	} {
		if result.Status != "pass" {
			t.Errorf("%s: expected 'pass', got '%s'", result.Name, result.Status)
		}
	}
}

func TestRunAll(t *testing.T) {
	results := NewChecker(setupPreflightTest(t, true), &config.Config{}).RunAll()

	expectedChecks := map[string]bool{
		"Database Connection":  false,
		"Database Schema":      false,
		"Model Credentials":    false,
		"Research Credentials": false,
		"Knowledge Seed":       false,
		"Messaging Channels":   false,
	}
	for _, result := range results {
		if _, exists := expectedChecks[result.Name]; exists {
			expectedChecks[result.Name] = true
		}
	}
	for checkName, ran := range expectedChecks {
		if !ran {
			t.Errorf("Expected check '%s' to run", checkName)
		}
	}

	if HasFailures(results) {
		t.Error("Expected no failures with a fresh database and empty config")
	}
}

func TestHasFailures(t *testing.T) {
	results := []CheckResult{
		{Status: "pass"},
		{Status: "pass"},
		{Status: "warning"},
	}

	if HasFailures(results) {
		t.Error("Expected no failures")
	}

	results = append(results, CheckResult{Status: "fail"})

	if !HasFailures(results) {
		t.Error("Expected failures to be detected")
	}
}

func TestQuickCheck(t *testing.T) {
	checker := NewChecker(setupPreflightTest(t, true), &config.Config{})

	results := checker.QuickCheck()
	if len(results) == 0 {
		t.Error("Expected results from quick check")
	}
	if len(results) >= len(checker.RunAll()) {
		t.Error("Expected quick check to run fewer checks than full check")
	}
}
