// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sunshine-protocol/bounty-bot/bountysync"
	"github.com/sunshine-protocol/bounty-bot/journal"
)

type HttpReader struct {
	baseURL string
	client  *http.Client
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return NewHttpReaderFromURL("http://" + serverIP + ":" + serverPort)
}

func NewHttpReaderFromURL(baseURL string) *HttpReader {
	return &HttpReader{baseURL: baseURL, client: http.DefaultClient}
}

func (hr *HttpReader) GetHealth() (string, error) {
	body, err := hr.get(ROUTE_HEALTH)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (hr *HttpReader) GetStatus() ([]bountysync.KindStatus, error) {
	body, err := hr.get(ROUTE_STATUS)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []bountysync.KindStatus `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetFailures returns the failures on the page and the total count.
func (hr *HttpReader) GetFailures(kind string, limit int) ([]*journal.Failure, int, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	route := ROUTE_FAILURES
	if len(q) > 0 {
		route += "?" + q.Encode()
	}

	body, err := hr.get(route)
	if err != nil {
		return nil, 0, err
	}

	var resp struct {
		Data  []*journal.Failure `json:"data"`
		Total int                `json:"total"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Data, resp.Total, nil
}

func (hr *HttpReader) get(route string) ([]byte, error) {
	resp, err := hr.client.Get(hr.baseURL + route)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %d %s", route, resp.StatusCode, body)
	}
	return body, nil
}
