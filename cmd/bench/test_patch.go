package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fulldump/temporaldb/bootstrap"
	"github.com/fulldump/temporaldb/configuration"
)

// TestPatch preloads c.N documents into a temporal collection and patches
// each worker's share, measuring the throughput of the close-predecessor
// plus insert-successor path.
func TestPatch(c Config) {

	createServer := c.Base == ""

	var start, stop func()
	if createServer {
		dir, cleanup := TempDir()
		cleanups = append(cleanups, cleanup)

		conf := configuration.Default()
		conf.Dir = dir
		c.Base = "http://" + conf.HttpAddr

		start, stop = bootstrap.Bootstrap(conf)
		go start()
		defer stop()
	}

	collectionName := "patch-" + strconv.FormatInt(time.Now().UnixNano(), 10)

	createPayload, _ := json.Marshal(JSON{"name": collectionName, "temporal": true})
	req, _ := http.NewRequest("POST", c.Base+"/v1/collections", strings.NewReader(string(createPayload)))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("ERROR: create collection:", err.Error())
		os.Exit(2)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	transport := &http.Transport{
		MaxConnsPerHost:     1024,
		MaxIdleConns:        1024,
		MaxIdleConnsPerHost: 1024,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   10 * time.Second,
	}

	{
		fmt.Println("Preload documents...")
		r, w := io.Pipe()

		encoder := json.NewEncoder(w)
		go func() {
			for i := int64(0); i < c.N; i++ {
				encoder.Encode(JSON{
					"_id":    strconv.FormatInt(i, 10),
					"value":  0,
					"worker": i % int64(c.Workers),
				})
			}
			w.Close()
		}()

		req, err := http.NewRequest("POST", c.Base+"/v1/collections/"+collectionName+":insert", r)
		if err != nil {
			fmt.Println("ERROR: new request:", err.Error())
			os.Exit(3)
		}

		resp, err := client.Do(req)
		if err != nil {
			fmt.Println("ERROR: do request:", err.Error())
			os.Exit(4)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	patchURL := fmt.Sprintf("%s/v1/collections/%s:patch", c.Base, collectionName)

	t0 := time.Now()
	worker := int64(-1)
	Parallel(c.Workers, func() {
		w := atomic.AddInt64(&worker, 1)

		body := fmt.Sprintf(`{"filter":{"worker":%d},"patch":{"value":1}}`, w)
		req, err := http.NewRequest(http.MethodPost, patchURL, strings.NewReader(body))
		if err != nil {
			fmt.Println("ERROR: new request:", err.Error())
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			fmt.Println("ERROR: do request:", err.Error())
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Println("ERROR: bad status:", resp.Status)
		}
	})

	took := time.Since(t0)
	fmt.Println("patched:", c.N)
	fmt.Println("took:", took)
	fmt.Printf("Throughput: %.2f rows/sec\n", float64(c.N)/took.Seconds())
}
