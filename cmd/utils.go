package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tubeload/tubeload/internal/config"
	"github.com/tubeload/tubeload/internal/download"
	"github.com/tubeload/tubeload/internal/logger"
)

// readActivePort reads the port of the running instance from the port file.
func readActivePort() int {
	portFile := filepath.Join(config.GetAppDir(), "port")
	data, err := os.ReadFile(portFile)
	if err != nil {
		return 0
	}
	var port int
	_, _ = fmt.Sscanf(string(data), "%d", &port)
	return port
}

// saveActivePort writes the active port for CLI discovery.
func saveActivePort(port int) {
	portFile := filepath.Join(config.GetAppDir(), "port")
	if err := os.WriteFile(portFile, []byte(fmt.Sprintf("%d", port)), 0o644); err != nil {
		logger.Log.Warnw("error writing port file", "error", err)
	}
	logger.Log.Infow("control server listening", "port", port)
}

// removeActivePort cleans up the port file on exit.
func removeActivePort() {
	portFile := filepath.Join(config.GetAppDir(), "port")
	if err := os.Remove(portFile); err != nil && !os.IsNotExist(err) {
		logger.Log.Warnw("error removing port file", "error", err)
	}
}

// readURLsFromFile reads URLs from a file, one per line. Blank lines and
// lines starting with '#' are skipped.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, scanner.Err()
}

// requireActivePort exits with a hint when no instance is running.
func requireActivePort() int {
	port := readActivePort()
	if port == 0 {
		fmt.Fprintln(os.Stderr, "Error: no running tubeload instance found.")
		fmt.Fprintln(os.Stderr, "Start one with 'tubeload' first.")
		os.Exit(1)
	}
	return port
}

// sendToServer posts a download request to a running instance.
func sendToServer(url, filename, outPath string, port int) error {
	reqBody := DownloadRequest{
		URL:      url,
		Filename: filename,
		Path:     outPath,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d/download", port)
	resp, err := http.Post(serverURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// postAction hits an action endpoint like /cancel?id=... on the running
// instance.
func postAction(action, id string, port int) error {
	serverURL := fmt.Sprintf("http://127.0.0.1:%d/%s?id=%s", port, action, id)
	resp, err := http.Post(serverURL, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// postReorder asks the running instance to move an item in the queue.
func postReorder(id string, pos, port int) error {
	serverURL := fmt.Sprintf("http://127.0.0.1:%d/reorder?id=%s&pos=%d", port, id, pos)
	resp, err := http.Post(serverURL, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// getRemoteItems fetches the queue from the running instance.
func getRemoteItems(port int) ([]download.Snapshot, error) {
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/list", port))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status: %s", resp.Status)
	}

	var items []download.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// resolveItemID expands an ID prefix to a full item ID by asking the running
// instance. Ambiguous prefixes are an error; unknown ones pass through so the
// server can report them.
func resolveItemID(partial string, port int) (string, error) {
	if len(partial) >= 32 {
		return partial, nil
	}

	items, err := getRemoteItems(port)
	if err != nil {
		return partial, nil
	}

	var matches []string
	for _, it := range items {
		if strings.HasPrefix(it.ID, partial) {
			matches = append(matches, it.ID)
		}
	}
	switch len(matches) {
	case 0:
		return partial, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous id prefix %q matches %d downloads", partial, len(matches))
	}
}
