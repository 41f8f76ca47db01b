package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status  int
	Body    string
	OrderNo string
	Err     error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	productID := flag.Int("product", 1, "product id")
	stockCheck := flag.Bool("stock", true, "check stock after test")
	dupCheck := flag.Bool("dup", true, "download all purchases and check for duplicate lines")

	// 超卖测试参数：200 个买家并发各买 1 条
	nBuyers := flag.Int("buyers", 200, "distinct buyers")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	// 1) 不超卖测试：不同买家并发下单
	fmt.Printf("start oversell test: product=%d buyers=%d concurrency=%d\n", *productID, *nBuyers, *concurrency)
	results := runBuy(client, *baseURL, *productID, *nBuyers, *concurrency)
	printSummary("oversell", results)

	if *stockCheck {
		stock, err := getStock(client, *baseURL, *productID)
		if err != nil {
			fmt.Println("stock check err:", err)
		} else {
			fmt.Println("final available stock:", stock)
		}
	}

	// 2) 不重复交付测试：把每笔成交的交付文件都下回来，任何一行出现两次即数据泄漏
	if *dupCheck {
		checkDuplicates(client, *baseURL, *productID, results)
	}

	// 3) 限流测试：同一个买家重复下单（更容易触发 429）
	fmt.Println("\nstart rate limit test: same buyer (10001), 50 requests, concurrency 50")
	results2 := runBuySameBuyer(client, *baseURL, *productID, 10001, 50, 50)
	printSummary("rate_limit", results2)
}

func runBuy(client *http.Client, baseURL string, productID int, nBuyers int, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, nBuyers)

	for i := 0; i < nBuyers; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = buyOnce(client, baseURL, productID, int64(idx+1))
		}(i)
	}

	wg.Wait()
	return results
}

func runBuySameBuyer(client *http.Client, baseURL string, productID int, buyerID int64, total int, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = buyOnce(client, baseURL, productID, buyerID)
		}(i)
	}

	wg.Wait()
	return results
}

func buyOnce(client *http.Client, baseURL string, productID int, buyerID int64) Result {
	req := map[string]any{"product_id": productID, "buyer_id": buyerID, "quantity": 1}
	b, _ := json.Marshal(req)
	url := fmt.Sprintf("%s/api/purchase", baseURL)
	httpReq, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	res := Result{Status: resp.StatusCode, Body: string(body)}
	if resp.StatusCode == http.StatusOK {
		var out struct {
			Data struct {
				OrderNo string `json:"order_no"`
			} `json:"data"`
		}
		if json.Unmarshal(body, &out) == nil {
			res.OrderNo = out.Data.OrderNo
		}
	}
	return res
}

// checkDuplicates 下载每笔成交的交付文件，统计跨订单重复出现的行。
func checkDuplicates(client *http.Client, baseURL string, productID int, results []Result) {
	seen := map[string]string{} // line -> first order_no
	dup := 0
	downloaded := 0

	for _, r := range results {
		if r.OrderNo == "" {
			continue
		}
		url := fmt.Sprintf("%s/download/%s/%d", baseURL, r.OrderNo, productID)
		resp, err := client.Get(url)
		if err != nil {
			fmt.Printf("  download %s err: %v\n", r.OrderNo, err)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("  download %s status=%d\n", r.OrderNo, resp.StatusCode)
			continue
		}
		downloaded++

		for _, line := range strings.Split(string(body), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if first, ok := seen[line]; ok {
				dup++
				fmt.Printf("  DUP line delivered to %s and %s: %s\n", first, r.OrderNo, line)
			} else {
				seen[line] = r.OrderNo
			}
		}
	}

	fmt.Printf("[dup] downloads=%d unique_lines=%d duplicates=%d\n", downloaded, len(seen), dup)
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 402, 404, 409, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// getStock 查询当前可售库存，用于压测后校验是否出现超卖。
func getStock(client *http.Client, baseURL string, productID int) (int64, error) {
	url := fmt.Sprintf("%s/api/seller/products/%d/stock", baseURL, productID)
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Code int `json:"code"`
		Data struct {
			AvailableStock int64 `json:"available_stock"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	return out.Data.AvailableStock, nil
}
