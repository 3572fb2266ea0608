package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mx-space/viewblock/internal/viewblock"
	"github.com/mx-space/viewblock/internal/viewblock/preview"
	"go.uber.org/zap"
)

type options struct {
	Server   string
	Token    string
	View     string
	Limit    int
	HasLimit bool
	Display  string
	Timeout  time.Duration
}

// blockConfig is the subset of GET /views/block-config the client needs.
type blockConfig struct {
	Action     string `json:"action"`
	Nonce      string `json:"wpnonce"`
	Endpoint   string `json:"endpoint"`
	DebounceMS int64  `json:"debounce_ms"`
}

var errPreviewFailed = errors.New("preview failed")

func main() {
	var opts options
	flag.StringVar(&opts.Server, "server", "http://127.0.0.1:2333", "Base URL of the view block service")
	flag.StringVar(&opts.Token, "token", "", "Bearer token sent with every request")
	flag.StringVar(&opts.View, "view", "", "View id or slug to preview")
	flag.IntVar(&opts.Limit, "limit", -1, "Override the view limit")
	flag.StringVar(&opts.Display, "form-display", viewblock.FormDisplayFull, "full, form or results")
	flag.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "limit" {
			opts.HasLimit = true
		}
	})

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if opts.View == "" {
		logger.Fatal("missing -view")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger, os.Stdout); err != nil {
		logger.Fatal("preview", zap.Error(err))
	}
}

func run(ctx context.Context, opts options, logger *zap.Logger, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	base := strings.TrimRight(opts.Server, "/")
	client := &http.Client{Timeout: opts.Timeout}

	cfg, err := loadBlockConfig(ctx, client, base+"/api/v2/views/block-config", opts.Token)
	if err != nil {
		return err
	}
	known, err := preview.LoadKnownViews(ctx, client, base+"/api/v2/views/published")
	if err != nil {
		return err
	}
	logger.Debug("published views loaded", zap.Int("count", known.Len()))

	fetcher := &preview.HTTPFetcher{
		Endpoint: base + cfg.Endpoint,
		Action:   cfg.Action,
		Nonce:    cfg.Nonce,
		Token:    opts.Token,
		Client:   client,
	}
	debounce := time.Duration(cfg.DebounceMS) * time.Millisecond
	c := preview.NewCoordinator(fetcher,
		preview.WithDebounce(debounce),
		preview.WithLogger(logger),
		preview.WithKnownViews(known),
		preview.WithFactsHandler(func(f viewblock.Facts) {
			logger.Debug("view facts", zap.Bool("custom_search", f.HasCustomSearch), zap.Bool("submit", f.HasSubmit))
		}),
	)
	defer c.Close()

	attrs := viewblock.ResetForView(opts.View)
	attrs.FormDisplay = opts.Display
	if opts.HasLimit {
		attrs.OverrideLimit, attrs.Limit = true, opts.Limit
	}
	c.Mount(attrs)

	snap, err := settle(ctx, c)
	if err != nil {
		return err
	}
	logger.Info("preview settled", zap.Stringer("state", snap.State))
	switch snap.State {
	case preview.StateContent:
		_, err = fmt.Fprintln(out, snap.Content)
		return err
	case preview.StateError, preview.StateDeleted:
		return fmt.Errorf("%w: %s", errPreviewFailed, snap.Message)
	}
	return fmt.Errorf("%w: unexpected state %s", errPreviewFailed, snap.State)
}

// settle waits until no preview is scheduled or in flight.
func settle(ctx context.Context, c *preview.Coordinator) (preview.Snapshot, error) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		snap := c.Snapshot()
		if !snap.Pending && snap.InFlight == 0 && snap.State != preview.StateBlank {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}

func loadBlockConfig(ctx context.Context, client *http.Client, endpoint, token string) (blockConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return blockConfig{}, err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		return blockConfig{}, fmt.Errorf("%w: %v", preview.ErrTransport, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return blockConfig{}, fmt.Errorf("%w: block config status %d", preview.ErrTransport, res.StatusCode)
	}
	var cfg blockConfig
	if err := json.NewDecoder(res.Body).Decode(&cfg); err != nil {
		return blockConfig{}, fmt.Errorf("%w: decode block config: %v", preview.ErrTransport, err)
	}
	if cfg.Endpoint == "" {
		return blockConfig{}, fmt.Errorf("%w: block config has no endpoint", preview.ErrTransport)
	}
	return cfg, nil
}
