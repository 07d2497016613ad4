package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sispromo/sispromo/internal/adapter/otel"
	"github.com/sispromo/sispromo/internal/apiclient"
	"github.com/sispromo/sispromo/internal/config"
	"github.com/sispromo/sispromo/internal/logger"
	"github.com/sispromo/sispromo/internal/resilience"
)

// CLI holds the root command and the lazily opened API client.
type CLI struct {
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	rootCmd *cobra.Command

	configFile string
	apiURL     string
	tokenFile  string
	cacheDir   string
	noCache    bool
	verbose    bool

	client *apiclient.Client
}

// NewCLI builds the command tree.
func NewCLI(in io.Reader, out, errOut io.Writer) *CLI {
	c := &CLI{in: in, out: out, errOut: errOut}
	root := &cobra.Command{
		Use:           "sispromoctl",
		Short:         "Command-line client for the SisPromo API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVar(&c.configFile, "config", config.DefaultConfigFile, "YAML configuration file")
	f.StringVar(&c.apiURL, "api-url", "", "API base URL (overrides client.base_url)")
	f.StringVar(&c.tokenFile, "token-file", "", "where the session token is kept")
	f.StringVar(&c.cacheDir, "cache-dir", "", "response cache directory")
	f.BoolVar(&c.noCache, "no-cache", false, "disable the local response cache")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "log requests, retries and cache fallbacks")

	root.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newStoresCmd(),
		c.newBrandsCmd(),
		c.newPromotersCmd(),
		c.newAssignmentsCmd(),
		c.newVisitPricesCmd(),
		c.newVisitsCmd(),
		c.newDashboardCmd(),
		c.newStatesCmd(),
		c.newCacheCmd(),
	)
	c.rootCmd = root
	return c
}

// Execute runs the command line with ctx.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	err := c.rootCmd.Execute()
	if cerr := c.close(); err == nil {
		err = cerr
	}
	return err
}

// SetArgs replaces os.Args[1:]. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// api opens the client on first use.
func (c *CLI) api() (*apiclient.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	cfg, err := config.LoadFrom(c.configFile)
	if err != nil {
		return nil, err
	}
	cc := cfg.Client
	if c.apiURL != "" {
		cc.BaseURL = c.apiURL
	}
	if c.tokenFile != "" {
		cc.TokenFile = c.tokenFile
	}
	if c.cacheDir != "" {
		cc.CacheDir = c.cacheDir
	}

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	log, _ := logger.NewWithWriter(config.Logging{Level: level, Service: "sispromoctl"}, c.errOut)
	slog.SetDefault(log)

	tokens, err := apiclient.NewFileTokenStore(cc.TokenFile)
	if err != nil {
		return nil, err
	}
	var cache *apiclient.ResponseCache
	if !c.noCache {
		if cache, err = apiclient.OpenResponseCache(cc); err != nil {
			return nil, err
		}
	}

	client, err := apiclient.New(cc, tokens, cache,
		apiclient.WithTransport(otel.Transport(http.DefaultTransport.(*http.Transport).Clone())),
		apiclient.WithBreaker(resilience.NewBreakerFromConfig(breakerConfig(cfg.Breaker, cc))),
		apiclient.WithSessionExpired(func() {
			fmt.Fprintln(c.errOut, "session expired; local tokens and cache were cleared")
		}),
	)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	c.client = client
	return client, nil
}

// breakerConfig caps the failure threshold at the attempts one read makes,
// so a read that exhausts its retries opens the circuit and later reads in
// the same command go straight to the cache.
func breakerConfig(b config.Breaker, cc config.Client) config.Breaker {
	b.MaxFailures = min(b.MaxFailures, cc.MaxRetries+1)
	return b
}

func (c *CLI) close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// print writes v as indented JSON and warns on stale data.
func (c *CLI) print(v any, meta apiclient.Meta) error {
	if meta.Stale {
		fmt.Fprintf(c.errOut, "warning: API unreachable, showing cached data from %s ago\n", meta.Age.Round(time.Second))
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// forceFlag adds --force to cmd and returns its target.
func forceFlag(cmd *cobra.Command) *bool {
	return cmd.Flags().BoolP("force", "f", false, "bypass the local cache")
}
