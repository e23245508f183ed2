package preflight

import (
	"fmt"
	"log"

	"healthbot/internal/config"
	"healthbot/internal/database"
	"healthbot/internal/services"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	db  *database.DB
	cfg *config.Config
}

// NewChecker creates a new preflight checker
func NewChecker(db *database.DB, cfg *config.Config) *Checker {
	return &Checker{db: db, cfg: cfg}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkDatabaseConnection(),
		c.checkDatabaseSchema(),
		c.checkModelCredentials(),
		c.checkResearchCredentials(),
		c.checkKnowledgeSeedFile(),
		c.checkChannels(),
	}

	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("📊 Pre-flight summary: %d passed, %d failed, %d warnings", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

// checkDatabaseConnection verifies database connectivity
func (c *Checker) checkDatabaseConnection() CheckResult {
	if err := c.db.Ping(); err != nil {
		return CheckResult{
			Name:    "Database Connection",
			Status:  "fail",
			Message: "Cannot connect to database",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Database Connection",
		Status:  "pass",
		Message: fmt.Sprintf("Database connection successful (%s)", c.db.Dialect),
	}
}

// checkDatabaseSchema verifies the knowledge table exists
func (c *Checker) checkDatabaseSchema() CheckResult {
	exists, err := c.db.TableExists("knowledge_records")
	if err != nil || !exists {
		if err == nil {
			err = fmt.Errorf("table knowledge_records missing")
		}
		return CheckResult{
			Name:    "Database Schema",
			Status:  "fail",
			Message: "Required table 'knowledge_records' not found",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Database Schema",
		Status:  "pass",
		Message: "Knowledge table exists",
	}
}

// checkModelCredentials warns when no generation key is set. The server
// still starts and every message gets the default response.
func (c *Checker) checkModelCredentials() CheckResult {
	if c.cfg.GoogleAPIKey == "" {
		return CheckResult{
			Name:    "Model Credentials",
			Status:  "warning",
			Message: "GOOGLE_API_KEY not set, replies will use the default message",
		}
	}
	return CheckResult{
		Name:    "Model Credentials",
		Status:  "pass",
		Message: fmt.Sprintf("Using %s / %s", c.cfg.DecomposerModel, c.cfg.ComposerModel),
	}
}

func (c *Checker) checkResearchCredentials() CheckResult {
	if c.cfg.ResearchAPIKey == "" {
		return CheckResult{
			Name:    "Research Credentials",
			Status:  "warning",
			Message: "SONAR_API_KEY not set, research lookups will report errors",
		}
	}
	return CheckResult{
		Name:    "Research Credentials",
		Status:  "pass",
		Message: "Research service configured at " + c.cfg.ResearchBaseURL,
	}
}

// checkKnowledgeSeedFile fails on a configured seed file that cannot be parsed
func (c *Checker) checkKnowledgeSeedFile() CheckResult {
	if c.cfg.KnowledgeSeedFile == "" {
		return CheckResult{
			Name:    "Knowledge Seed",
			Status:  "pass",
			Message: "Using built-in knowledge seed",
		}
	}

	seed, err := services.LoadKnowledgeSeedFile(c.cfg.KnowledgeSeedFile)
	if err != nil {
		return CheckResult{
			Name:    "Knowledge Seed",
			Status:  "fail",
			Message: fmt.Sprintf("Cannot load %s", c.cfg.KnowledgeSeedFile),
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Knowledge Seed",
		Status:  "pass",
		Message: fmt.Sprintf("%d tips and %d products in %s", len(seed.Tips), len(seed.Products), c.cfg.KnowledgeSeedFile),
	}
}

func (c *Checker) checkChannels() CheckResult {
	var enabled []string
	if c.cfg.TwilioAccountSID != "" && c.cfg.TwilioAuthToken != "" {
		enabled = append(enabled, "whatsapp")
	}
	if c.cfg.TelegramBotToken != "" {
		enabled = append(enabled, "telegram")
	}

	if len(enabled) == 0 {
		return CheckResult{
			Name:    "Messaging Channels",
			Status:  "warning",
			Message: "No messaging credentials configured, only web chat and inline TwiML replies are available",
		}
	}
	return CheckResult{
		Name:    "Messaging Channels",
		Status:  "pass",
		Message: fmt.Sprintf("Enabled: %v", enabled),
	}
}

// QuickCheck runs minimal checks for fast startup
func (c *Checker) QuickCheck() []CheckResult {
	log.Println("⚡ Running quick pre-flight checks...")

	results := []CheckResult{
		c.checkDatabaseConnection(),
	}

	for _, result := range results {
		if result.Status == "pass" {
			log.Printf("   ✅ %s", result.Name)
		} else if result.Status == "fail" {
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
		}
	}

	return results
}
