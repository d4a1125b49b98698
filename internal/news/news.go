// Package news fetches recent exchange headlines used as sentiment input for
// the advisor context. Best effort: a failed fetch never blocks a cycle.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/camuig/quorum-trader/internal/logger"
)

const newsBaseURL = "https://iss.moex.com/iss/sitenews.json?lang=ru"

// tickerToNames maps tickers to company names for headline matching.
var tickerToNames = map[string][]string{
	"SBER": {"Сбербанк", "Сбер"},
	"GAZP": {"Газпром"},
	"LKOH": {"Лукойл", "ЛУКОЙЛ"},
	"GMKN": {"Норникель", "Норильский никель"},
	"NVTK": {"Новатэк", "НОВАТЭК"},
	"ROSN": {"Роснефть"},
	"YDEX": {"Яндекс"},
	"MTSS": {"МТС"},
	"MGNT": {"Магнит"},
	"PLZL": {"Полюс"},
	"CHMF": {"Северсталь"},
	"ALRS": {"Алроса", "АЛРОСА"},
	"VTBR": {"ВТБ"},
	"MOEX": {"Мосбиржа", "Московская биржа"},
	"TATN": {"Татнефть"},
	"NLMK": {"НЛМК"},
	"PHOR": {"ФосАгро"},
	"IRAO": {"Интер РАО"},
}

type Headline struct {
	ID        int64
	Title     string
	Published time.Time
}

type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

type issNewsResponse struct {
	SiteNews struct {
		Columns []string        `json:"columns"`
		Data    [][]interface{} `json:"data"`
	} `json:"sitenews"`
}

// FetchRecent returns headlines published within the last 24 hours.
func (c *Client) FetchRecent(ctx context.Context) ([]Headline, error) {
	var all []Headline
	cutoff := time.Now().Add(-24 * time.Hour)

	for page := 0; page < 4; page++ {
		url := fmt.Sprintf("%s&start=%d", newsBaseURL, page*50)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create news request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch news page %d: %w", page, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("news feed returned status %d", resp.StatusCode)
		}
		if readErr != nil {
			return nil, fmt.Errorf("read news response: %w", readErr)
		}

		var iss issNewsResponse
		if err := json.Unmarshal(body, &iss); err != nil {
			return nil, fmt.Errorf("parse news response: %w", err)
		}

		idIdx, titleIdx, pubIdx := -1, -1, -1
		for i, col := range iss.SiteNews.Columns {
			switch col {
			case "id":
				idIdx = i
			case "title":
				titleIdx = i
			case "published_at":
				pubIdx = i
			}
		}
		if idIdx < 0 || titleIdx < 0 || pubIdx < 0 {
			return nil, fmt.Errorf("unexpected news columns: %v", iss.SiteNews.Columns)
		}

		stoppedEarly := false
		for _, row := range iss.SiteNews.Data {
			if len(row) <= pubIdx || len(row) <= titleIdx || len(row) <= idIdx {
				continue
			}

			pubStr, _ := row[pubIdx].(string)
			published, err := time.Parse("2006-01-02 15:04:05", pubStr)
			if err != nil {
				continue
			}

			if published.Before(cutoff) {
				stoppedEarly = true
				break
			}

			id := int64(toFloat64(row[idIdx]))
			title, _ := row[titleIdx].(string)

			all = append(all, Headline{ID: id, Title: title, Published: published})
		}

		if stoppedEarly || len(iss.SiteNews.Data) < 50 {
			break
		}
	}

	return all, nil
}

// FilterForSymbols groups headlines by symbol, matching either the ticker
// itself or a known company name in the title.
func FilterForSymbols(headlines []Headline, symbols []string) map[string][]Headline {
	result := make(map[string][]Headline)

	for _, symbol := range symbols {
		searchTerms := []string{strings.ToUpper(symbol)}
		if names, ok := tickerToNames[symbol]; ok {
			searchTerms = append(searchTerms, names...)
		}

		for _, item := range headlines {
			titleUpper := strings.ToUpper(item.Title)
			for _, term := range searchTerms {
				if strings.Contains(titleUpper, strings.ToUpper(term)) {
					result[symbol] = append(result[symbol], item)
					break
				}
			}
		}
	}

	return result
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
