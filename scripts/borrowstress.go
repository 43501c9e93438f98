//go:build ignore
// +build ignore

// Manual concurrency stress test for the borrow endpoint.
//
// Usage:
//
//	go run ./scripts/borrowstress.go <book_id> <user:pass> [user:pass ...]
//
// Or with environment variables:
//
//	BOOK_ID=3 USERS=alice:pw1,bob:pw2 go run ./scripts/borrowstress.go
//
// What it does:
//  1. Logs each user in through the login form to obtain a session cookie.
//  2. Fires one goroutine per user, all attempting POST /api/borrow/{book_id}
//     at the same instant (barrier release).
//  3. Tallies borrows vs. conflicts. With N users and K available copies the
//     correct outcome is exactly min(N, K) borrows; anything more means the
//     availability re-check under the row lock is broken.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultServerAddr = "http://localhost:8080"

type borrowResult struct {
	User       string
	StatusCode int
	ErrorMsg   string
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	bookID := os.Getenv("BOOK_ID")
	var creds []string
	if env := os.Getenv("USERS"); env != "" {
		creds = strings.Split(env, ",")
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		bookID = args[0]
	}
	if len(args) >= 2 {
		creds = args[1:]
	}

	if bookID == "" || len(creds) == 0 {
		log.Fatal("Usage: BOOK_ID=<id> USERS=<u1:p1,u2:p2,...> go run ./scripts/borrowstress.go\n" +
			"  or: go run ./scripts/borrowstress.go <book_id> <user:pass> [user:pass ...]")
	}

	fmt.Printf("=== Borrow Concurrency Test ===\n")
	fmt.Printf("Server : %s\n", serverAddr)
	fmt.Printf("Book   : %s\n", bookID)
	fmt.Printf("Users  : %d\n\n", len(creds))

	// Log everyone in first so the hot path measures only the borrow call.
	clients := make([]*http.Client, len(creds))
	for i, cred := range creds {
		parts := strings.SplitN(strings.TrimSpace(cred), ":", 2)
		if len(parts) != 2 {
			log.Fatalf("bad credential %q, want user:pass", cred)
		}
		client, err := login(serverAddr, parts[0], parts[1])
		if err != nil {
			log.Fatalf("login failed for %s: %v", parts[0], err)
		}
		clients[i] = client
	}

	results := make([]borrowResult, len(creds))
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i, cred := range creds {
		wg.Add(1)
		go func(idx int, user string, client *http.Client) {
			defer wg.Done()
			<-start
			results[idx] = attemptBorrow(client, serverAddr, bookID, user)
		}(i, strings.SplitN(cred, ":", 2)[0], clients[i])
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()
	fmt.Println("All requests completed.")
	fmt.Println()

	var borrows, conflicts, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] user=%-20s err=%v\n", r.User, r.Err)
		case r.StatusCode == http.StatusOK:
			borrows++
			fmt.Printf("  [BRRW] user=%-20s status=%d\n", r.User, r.StatusCode)
		case r.StatusCode == http.StatusBadRequest:
			conflicts++
			fmt.Printf("  [CNFL] user=%-20s status=%d msg=%q\n", r.User, r.StatusCode, r.ErrorMsg)
		default:
			failures++
			fmt.Printf("  [FAIL] user=%-20s status=%d unexpected response\n", r.User, r.StatusCode)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Borrows   : %d\n", borrows)
	fmt.Printf("Conflicts : %d\n", conflicts)
	fmt.Printf("Failures  : %d\n", failures)
	fmt.Printf("Total     : %d\n", len(creds))

	if failures > 0 {
		fmt.Printf("\n[WARNING] %d request(s) failed — check server logs for details.\n", failures)
		os.Exit(1)
	}
}

// login posts the login form and returns a client carrying the session cookie.
func login(serverAddr, username, password string) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	form := url.Values{
		"action":   {"login"},
		"username": {username},
		"password": {password},
	}
	resp, err := client.PostForm(serverAddr+"/", form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		return nil, fmt.Errorf("unexpected login status %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/dashboard" {
		return nil, fmt.Errorf("login rejected, redirected to %s", loc)
	}
	return client, nil
}

func attemptBorrow(client *http.Client, serverAddr, bookID, user string) borrowResult {
	url := fmt.Sprintf("%s/api/borrow/%s", serverAddr, bookID)

	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return borrowResult{User: user, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return borrowResult{User: user, StatusCode: resp.StatusCode, Err: fmt.Errorf("bad JSON: %s", raw)}
	}
	return borrowResult{User: user, StatusCode: resp.StatusCode, ErrorMsg: parsed.Error}
}
