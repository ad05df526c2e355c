package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pulse-dna/PulseDNA/internal/model"
	"github.com/pulse-dna/PulseDNA/internal/service"
	"github.com/pulse-dna/PulseDNA/internal/storage"
	"github.com/pulse-dna/PulseDNA/pkg/logger"
)

// Global flags
var (
	dbPath string
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("PULSE_DB_PATH", storage.DefaultDBFile), "Path to the SQLite database file")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createService() (*service.BiometricService, error) {
	return service.NewBiometricService(service.WithDBPath(dbPath))
}

func main() {
	log := logger.GetLogger()

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	log.Infof("Executing command: %s", command)

	switch command {
	case "enroll":
		handleEnroll(args[1:])
	case "auth":
		handleAuth(args[1:])
	case "list":
		handleList()
	case "delete":
		handleDelete(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// readSamples loads a window of heart-rate samples from a JSON file.
// The file holds either a bare array of samples or an object with a
// "samples" field, matching the HTTP request shape.
func readSamples(path string) ([]model.HeartRateSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sample file: %w", err)
	}

	var samples []model.HeartRateSample
	if err := json.Unmarshal(data, &samples); err == nil {
		return samples, nil
	}

	var wrapped struct {
		Samples []model.HeartRateSample `json:"samples"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing sample file: %w", err)
	}
	return wrapped.Samples, nil
}

func handleEnroll(args []string) {
	log := logger.GetLogger()

	enrollCmd := flag.NewFlagSet("enroll", flag.ExitOnError)
	user := enrollCmd.String("user", "", "User ID to enroll (required)")
	file := enrollCmd.String("file", "", "JSON file with the enrollment sample window (required)")
	enrollCmd.Parse(args)

	if *user == "" || *file == "" {
		fmt.Println("Usage: pulsedna enroll --user <user_id> --file <samples.json>")
		os.Exit(1)
	}

	samples, err := readSamples(*file)
	if err != nil {
		fmt.Printf("Failed to read samples: %v\n", err)
		log.Errorf("readSamples failed: %v", err)
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	template, err := svc.Enroll(ctx, *user, samples)
	if err != nil {
		fmt.Printf("Enrollment failed: %v\n", err)
		log.Errorf("Enroll failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\nEnrolled successfully!")
	fmt.Printf("   User:      %s\n", template.UserID)
	fmt.Printf("   Signature: %s\n", template.Signature)
	fmt.Printf("   Threshold: %.2f\n", template.ConfidenceThreshold)
	fmt.Printf("   Samples:   %d\n", template.SampleCount)
}

func handleAuth(args []string) {
	log := logger.GetLogger()

	authCmd := flag.NewFlagSet("auth", flag.ExitOnError)
	file := authCmd.String("file", "", "JSON file with the live sample window (required)")
	authCmd.Parse(args)

	if *file == "" {
		fmt.Println("Usage: pulsedna auth --file <samples.json>")
		os.Exit(1)
	}

	samples, err := readSamples(*file)
	if err != nil {
		fmt.Printf("Failed to read samples: %v\n", err)
		log.Errorf("readSamples failed: %v", err)
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	result := svc.Authenticate(samples)

	if result.Authenticated {
		fmt.Println("\nMatch accepted!")
		fmt.Printf("   User:       %s\n", *result.UserID)
		fmt.Printf("   Confidence: %.3f\n", result.Confidence)
	} else {
		fmt.Println("\nNo accepted match")
		fmt.Printf("   Best confidence: %.3f\n", result.Confidence)
		if reason, ok := result.Details["error"]; ok {
			fmt.Printf("   Reason: %s\n", reason)
		}
	}
}

func handleList() {
	log := logger.GetLogger()

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	templates := svc.ListTemplates()
	if len(templates) == 0 {
		fmt.Println("\nNo enrolled templates")
		return
	}

	fmt.Printf("\nFound %d enrolled template(s):\n\n", len(templates))
	for i, t := range templates {
		fmt.Printf("%d. %s (signature %s)\n", i+1, t.UserID, t.Signature)
		fmt.Printf("   Enrolled:  %s\n", t.CreatedAt.Format(time.RFC3339))
		fmt.Printf("   Threshold: %.2f | Samples: %d | Mean HR: %.1f BPM\n",
			t.ConfidenceThreshold, t.SampleCount, t.Features.MeanHR)
		fmt.Println()
	}
	log.Infof("Listed %d templates", len(templates))
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: pulsedna delete <user_id>")
		os.Exit(1)
	}
	userID := args[0]

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := svc.DeleteTemplate(ctx, userID); err != nil {
		fmt.Printf("Failed to delete template: %v\n", err)
		log.Errorf("DeleteTemplate failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("\nDeleted template for user %s\n", userID)
}

func printUsage() {
	fmt.Println("PulseDNA - Heart-Rate Biometric Identification CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>    Path to SQLite database (env: PULSE_DB_PATH, default: pulsedna.sqlite3)")
	fmt.Println("\nUsage:")
	fmt.Println("  pulsedna [global-options] enroll --user <user_id> --file <samples.json>")
	fmt.Println("  pulsedna [global-options] auth --file <samples.json>")
	fmt.Println("  pulsedna [global-options] list")
	fmt.Println("  pulsedna [global-options] delete <user_id>")
	fmt.Println("\nSample files hold a JSON array of measurements:")
	fmt.Println(`  [{"timestamp":"2025-01-01T00:00:00Z","heart_rate":72.5,"confidence":0.9}, ...]`)
}
