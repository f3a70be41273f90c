// Command seeder fills a running instance with a faker-generated menu and
// optionally drives simulated sale rounds against it. Demo and load-testing
// tool; talks plain HTTP to the service.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/jaswdr/faker"
)

type menuItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type cart struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8081", "base URL of the running service")
	items := flag.Int("items", 12, "menu items to create")
	sales := flag.Int("sales", 0, "simulated sale rounds to run (0 = seed only)")
	rate := flag.Int("rate", 2, "sales per second")
	flag.Parse()

	f := faker.New()
	client := &http.Client{Timeout: 5 * time.Second}

	menu := make([]menuItem, 0, *items)
	for i := 0; i < *items; i++ {
		name := f.Food().Fruit()
		if i%2 == 0 {
			name = f.Beer().Name()
		}
		price := f.Float64(2, 1, 15)

		var created menuItem
		if err := post(client, *addr+"/menu", map[string]any{
			"name":  fmt.Sprintf("%s #%d", name, i+1),
			"price": price,
		}, &created); err != nil {
			log.Fatalf("seeding menu: %v", err)
		}
		menu = append(menu, created)
	}
	log.Printf("seeded %d menu items", len(menu))

	if *sales <= 0 {
		return
	}
	if *rate < 1 {
		*rate = 1
	}

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	var settled int
	for round := 0; round < *sales; round++ {
		<-ticker.C
		if err := runSale(client, *addr, f, menu, round); err != nil {
			log.Printf("sale %d failed: %v", round, err)
			continue
		}
		settled++
	}
	log.Printf("simulation done: %d/%d sales settled", settled, *sales)
}

// runSale opens a cart, adds a few lines and settles it with a rounded-up
// cash amount, the way an operator would.
func runSale(client *http.Client, addr string, f faker.Faker, menu []menuItem, round int) error {
	cartName := fmt.Sprintf("%s %d", f.Person().FirstName(), round)
	if err := post(client, addr+"/carts", map[string]any{"name": cartName}, nil); err != nil {
		return err
	}

	lines := f.IntBetween(1, 4)
	for i := 0; i < lines; i++ {
		item := menu[f.IntBetween(0, len(menu)-1)]
		if err := post(client, addr+"/cart/items", map[string]any{"item_id": item.ID}, nil); err != nil {
			return err
		}
	}

	var current cart
	if err := get(client, addr+"/cart", &current); err != nil {
		return err
	}

	// Pay with the next full five units, like handing over a note.
	paid := math.Ceil(current.Total/5) * 5
	if paid < current.Total {
		paid = current.Total
	}
	return post(client, addr+"/cart/checkout", map[string]any{"amount_paid": paid}, nil)
}

func post(client *http.Client, url string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func get(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
