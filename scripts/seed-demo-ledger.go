//go:build ignore
// +build ignore

// seed-demo-ledger seeds 6 months of realistic transactions for a demo
// user through the transactions API.
//
// Usage:
//   go run scripts/seed-demo-ledger.go
//   API_URL=http://localhost:8111 DEMO_USER=demo go run scripts/seed-demo-ledger.go

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

type txnPayload struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	Merchant      string `json:"merchant"`
	Amount        string `json:"amount"`
	Category      string `json:"category"`
	Mood          string `json:"mood"`
	Location      string `json:"location"`
	CalendarEvent string `json:"calendar_event"`
	GroupID       string `json:"group_id"`
	BalanceAfter  string `json:"balance_after"`
}

var merchants = map[string][]string{
	"Food":          {"Green Grocer", "Corner Cafe", "Spice Route", "Daily Deli"},
	"Transport":     {"Metro Card", "City Cabs", "FuelStop"},
	"Shopping":      {"Trend Mart", "Book Nook", "Gadget World"},
	"Entertainment": {"CinePlex", "Arcade Zone", "StreamFlix"},
	"Bills":         {"PowerGrid Co", "AquaNet", "FiberLink"},
	"Health":        {"WellCare Pharmacy", "City Gym"},
}

var categories = []string{"Food", "Transport", "Shopping", "Entertainment", "Bills", "Health"}
var moods = []string{"Happy", "Neutral", "Stressed", "Sad", "Excited"}
var locations = []string{"Downtown", "Home", "Office District", "Mall", "Airport"}
var events = []string{"None", "None", "None", "None", "Birthday", "Holiday", "Concert"}

func main() {
	rng := rand.New(rand.NewSource(42)) // deterministic for reproducibility

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8111"
	}
	user := os.Getenv("DEMO_USER")
	if user == "" {
		user = "demo"
	}

	log.Printf("Seeding 6 months of transactions for %s via %s", user, apiURL)

	balance := 52000.0
	start := time.Now().AddDate(0, -6, 0)
	count := 0

	for day := 0; day < 180; day++ {
		date := start.AddDate(0, 0, day)

		// Salary lands on the 1st.
		if date.Day() == 1 {
			balance += 45000
			salary := txnPayload{
				Date:          date.Format("2006-01-02"),
				Time:          "09:00:00",
				Merchant:      "Acme Corp Payroll",
				Amount:        "0",
				Category:      "Bills",
				Mood:          "Happy",
				Location:      "Home",
				CalendarEvent: "None",
				GroupID:       "1",
				BalanceAfter:  fmt.Sprintf("%.2f", balance),
			}
			post(apiURL, user, salary)
			count++
		}

		nTxns := 1 + rng.Intn(4)
		for t := 0; t < nTxns; t++ {
			category := categories[rng.Intn(len(categories))]
			names := merchants[category]
			mood := moods[rng.Intn(len(moods))]
			event := events[rng.Intn(len(events))]

			amount := 80 + rng.Float64()*900
			// Weekends and stressed days run hotter.
			if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
				amount *= 1.4
			}
			if mood == "Stressed" {
				amount *= 1.3
			}
			balance -= amount
			hour := 8 + rng.Intn(15)

			payload := txnPayload{
				Date:          date.Format("2006-01-02"),
				Time:          fmt.Sprintf("%02d:%02d:00", hour, rng.Intn(60)),
				Merchant:      names[rng.Intn(len(names))],
				Amount:        fmt.Sprintf("%.2f", amount),
				Category:      category,
				Mood:          mood,
				Location:      locations[rng.Intn(len(locations))],
				CalendarEvent: event,
				GroupID:       fmt.Sprintf("%d", 1+rng.Intn(3)),
				BalanceAfter:  fmt.Sprintf("%.2f", balance),
			}
			post(apiURL, user, payload)
			count++
		}
	}

	log.Printf("Seeded %d transactions", count)
	log.Printf("Try: curl %s/api/ml/analyze/%s", apiURL, user)
}

func post(apiURL, user string, payload txnPayload) {
	body, _ := json.Marshal(payload)
	resp, err := http.Post(
		fmt.Sprintf("%s/api/transactions/%s", apiURL, user),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		log.Fatalf("Failed to post transaction: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		log.Fatalf("Transaction rejected (%d): %s", resp.StatusCode, data)
	}
}
