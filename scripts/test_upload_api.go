package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

const chunkSize = 64 * 1024

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

func sendChunk(sessionId string, index, totalChunks int, totalSize int64, filename string, data []byte) (map[string]interface{}, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if sessionId != "" {
		w.WriteField("session_id", sessionId)
	}
	w.WriteField("chunk_index", strconv.Itoa(index))
	w.WriteField("total_chunks", strconv.Itoa(totalChunks))
	w.WriteField("total_size", strconv.FormatInt(totalSize, 10))
	w.WriteField("filename", filename)

	part, err := w.CreateFormFile("chunk", filename)
	if err != nil {
		return nil, err
	}
	part.Write(data)
	w.Close()

	req, err := http.NewRequest("POST", baseURL+"/upload/v1/chunk", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return doJSON(req)
}

func doJSON(req *http.Request) (map[string]interface{}, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %s: %s", resp.Status, string(body))
	}

	var out map[string]interface{}
	json.Unmarshal(body, &out)
	return out, nil
}

func get(path string) (map[string]interface{}, error) {
	req, _ := http.NewRequest("GET", baseURL+path, nil)
	return doJSON(req)
}

func post(path string) (map[string]interface{}, error) {
	req, _ := http.NewRequest("POST", baseURL+path, nil)
	return doJSON(req)
}

func main() {
	if len(os.Args) < 2 {
		color.Red("Usage: go run scripts/test_upload_api.go <file>")
		os.Exit(1)
	}

	color.Cyan("🚀 Starting Upload Orchestration API Test\n")

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		color.Red("Failed to read file: %v", err)
		os.Exit(1)
	}
	totalChunks := (len(data) + chunkSize - 1) / chunkSize

	// 1. Upload chunks
	color.Yellow("\n1. Uploading %d chunks", totalChunks)
	sessionId := ""
	for i := 0; i < totalChunks; i++ {
		end := (i + 1) * chunkSize
		if end > len(data) {
			end = len(data)
		}
		res, err := sendChunk(sessionId, i, totalChunks, int64(len(data)), os.Args[1], data[i*chunkSize:end])
		if err != nil {
			color.Red("Chunk %d failed: %v", i, err)
			os.Exit(1)
		}
		if sessionId == "" {
			sessionId = res["data"].(map[string]interface{})["session_id"].(string)
			color.Green("Session: %s", sessionId)
		}
	}

	// 2. Finalize
	color.Yellow("\n2. Finalizing upload")
	res, err := post("/upload/v1/" + sessionId + "/finalize")
	if err != nil {
		color.Red("Finalize failed: %v", err)
		os.Exit(1)
	}
	prettyPrint(res)

	// 3. Poll status until terminal
	color.Yellow("\n3. Polling status")
	for {
		res, err = get("/upload/v1/" + sessionId + "/status")
		if err != nil {
			color.Red("Status failed: %v", err)
			os.Exit(1)
		}
		statusData := res["data"].(map[string]interface{})
		status := statusData["status"].(string)
		color.Green("Status: %s", status)
		if status == "completed" || status == "failed" || status == "stalled" {
			prettyPrint(statusData)
			break
		}
		time.Sleep(2 * time.Second)
	}

	// 4. Fetch results
	color.Yellow("\n4. Fetching study kit")
	res, err = get("/upload/v1/" + sessionId + "/results")
	if err != nil {
		color.Red("Results failed: %v", err)
		os.Exit(1)
	}
	prettyPrint(res)

	color.Cyan("\n✅ Done")
}
