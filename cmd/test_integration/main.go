package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	baseURL = "http://localhost:8080"
)

// Smoke test against a running server: start a review-mode run, wait for
// it, then read back the review it produced.
func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	fmt.Println("1. Starting run...")
	var run struct {
		ID       string     `json:"id"`
		Status   string     `json:"status"`
		ReviewID string     `json:"review_id"`
		Error    string     `json:"error"`
		Finished *time.Time `json:"finished_at"`
	}
	if !sendRequest("POST", "/runs", map[string]string{"mode": "review"}, http.StatusAccepted, &run) {
		fmt.Println("FAILED: Start run")
		os.Exit(1)
	}
	fmt.Printf("PASSED: Start run (%s)\n", run.ID)

	fmt.Println("2. Waiting for run...")
	deadline := time.Now().Add(10 * time.Minute)
	for run.Finished == nil {
		if time.Now().After(deadline) {
			fmt.Println("FAILED: Run did not finish in time")
			os.Exit(1)
		}
		time.Sleep(2 * time.Second)
		if !sendRequest("GET", "/runs/"+run.ID, nil, http.StatusOK, &run) {
			fmt.Println("FAILED: Poll run")
			os.Exit(1)
		}
	}
	if run.Status != "converged" && run.Status != "capped" {
		fmt.Printf("FAILED: Run ended with %s: %s\n", run.Status, run.Error)
		os.Exit(1)
	}
	fmt.Printf("PASSED: Run %s\n", run.Status)

	if run.ReviewID == "" {
		fmt.Println("PASSED: Empty plan, nothing to review")
		return
	}

	fmt.Println("3. Reading review...")
	if !sendRequest("GET", "/reviews/"+run.ReviewID, nil, http.StatusOK, nil) {
		fmt.Println("FAILED: Get review")
		os.Exit(1)
	}
	fmt.Println("PASSED: Get review")
}

func sendRequest(method, endpoint string, payload interface{}, want int, out interface{}) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			fmt.Printf("Error decoding response: %v\n", err)
			return false
		}
	}
	return true
}
