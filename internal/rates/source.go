// Package rates предоставляет курс RUB -> UZS из внешнего источника
// в формате ЦБ Узбекистана.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// CBUSource читает курс из JSON API ЦБ. Запрос идемпотентный, поэтому
// допускает ограниченные повторы; результат кешируется на короткий TTL.
type CBUSource struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	rate      float64
	fetchedAt time.Time
}

// NewCBUSource создает новый источник курса
func NewCBUSource(url string, ttl time.Duration, logger *zap.Logger) *CBUSource {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.HTTPClient.Timeout = 10 * time.Second
	retryClient.Logger = nil

	return &CBUSource{
		url:        url,
		ttl:        ttl,
		httpClient: retryClient.StandardClient(),
		logger:     logger,
	}
}

type cbuRate struct {
	Ccy  string `json:"Ccy"`
	Rate string `json:"Rate"`
}

// RUBRate возвращает текущий курс UZS за 1 RUB
func (s *CBUSource) RUBRate(ctx context.Context) (float64, error) {
	s.mu.Lock()
	if s.rate > 0 && time.Since(s.fetchedAt) < s.ttl {
		rate := s.rate
		s.mu.Unlock()
		return rate, nil
	}
	s.mu.Unlock()

	rate, err := s.fetch(ctx)
	if err != nil {
		// Устаревший курс лучше отказа: вывод средств все равно
		// проходит через админа
		s.mu.Lock()
		stale := s.rate
		s.mu.Unlock()
		if stale > 0 {
			s.logger.Warn("using stale exchange rate", zap.Error(err))
			return stale, nil
		}
		return 0, err
	}

	s.mu.Lock()
	s.rate = rate
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return rate, nil
}

// fetch загружает курс RUB из источника
func (s *CBUSource) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("rates: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rates: failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rates: unexpected status code: %d", resp.StatusCode)
	}

	var list []cbuRate
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return 0, fmt.Errorf("rates: failed to decode response: %w", err)
	}

	for _, r := range list {
		if r.Ccy == "RUB" {
			rate, err := strconv.ParseFloat(r.Rate, 64)
			if err != nil {
				return 0, fmt.Errorf("rates: failed to parse RUB rate %q: %w", r.Rate, err)
			}
			if rate <= 0 {
				return 0, fmt.Errorf("rates: non-positive RUB rate: %f", rate)
			}
			return rate, nil
		}
	}

	return 0, fmt.Errorf("rates: RUB rate not present in response")
}
