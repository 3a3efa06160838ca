package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/config"
)

const (
	productSlug   = "stress-test-widget"
	totalRequests = 50
)

// Fires concurrent checkouts for one shopper's cart against a running server.
// Exactly one of them may create an order.
func main() {
	ctx := context.Background()
	cfg := config.Load()
	baseURL := "http://localhost" + cfg.HTTPAddr

	// Seed a product
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx,
		`INSERT INTO products (name, slug, price, stock_quantity) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE price = VALUES(price)`,
		"Stress Test Widget", productSlug, "19.99", 1000,
	); err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}
	var productID int64
	if err := db.QueryRowContext(ctx, `SELECT id FROM products WHERE slug = ?`, productSlug).Scan(&productID); err != nil {
		log.Fatalf("failed to load product: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// One guest session, shared by every request
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar, Timeout: 30 * time.Second}

	status, err := postJSON(client, baseURL+"/api/cart/add", map[string]any{"product_id": productID, "quantity": 2})
	if err != nil || status != http.StatusOK {
		log.Fatalf("failed to fill cart: status=%d err=%v", status, err)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		log.Fatalf("bad base url: %v", err)
	}
	sessionID := ""
	for _, c := range jar.Cookies(u) {
		if c.Name == handler.SessionCookie {
			sessionID = c.Value
		}
	}
	if sessionID == "" {
		log.Fatal("server did not set a session cookie")
	}

	form := map[string]string{
		"name":        "Stress Tester",
		"email":       fmt.Sprintf("stress-%d@example.com", time.Now().UnixNano()),
		"phone":       "5550100",
		"address":     "1 Load St",
		"city":        "Springfield",
		"state":       "IL",
		"postal_code": "62701",
		"country":     "US",
		"password":    "stress-pass",
	}

	// Counters
	var created, conflict, empty, limited, other atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			status, err := postJSON(client, baseURL+"/api/checkout", form)
			switch {
			case err != nil:
				other.Add(1)
			case status == http.StatusCreated:
				created.Add(1)
			case status == http.StatusConflict:
				conflict.Add(1)
			case status == http.StatusUnprocessableEntity:
				empty.Add(1)
			case status == http.StatusTooManyRequests:
				limited.Add(1)
			default:
				other.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Orders Created:   %d\n", created.Load())
	fmt.Printf("In Progress:      %d\n", conflict.Load())
	fmt.Printf("Empty Cart:       %d\n", empty.Load())
	fmt.Printf("Rate Limited:     %d\n", limited.Load())
	fmt.Printf("Other:            %d\n", other.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if created.Load() == 1 {
		fmt.Println("PASS: Exactly 1 order created")
	} else {
		fmt.Printf("FAIL: Expected 1 order, got %d\n", created.Load())
	}

	n, _ := rdb.Exists(ctx, "cart:session:"+sessionID).Result()
	if n == 0 {
		fmt.Println("PASS: Session cart cleared")
	} else {
		fmt.Println("FAIL: Session cart still present")
	}
}

func postJSON(client *http.Client, target string, body any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	resp, err := client.Post(target, "application/json", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
