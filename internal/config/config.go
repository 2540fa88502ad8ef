// Package config loads application configuration from environment variables.
//
// WHY ENV VARS?
// Environment variables are the standard twelve-factor way to configure a
// service: the same binary runs in dev, CI, and production with different
// settings and no config files to template. Everything is read ONCE at
// startup into an immutable Config struct — no package reads os.Getenv at
// request time, so behaviour can't silently change under a running server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nafis/campus-hub/internal/model"
)

// Default point weights per activity source.
//
// PLACEHOLDER POLICY, NOT GOSPEL:
// Product has not signed off on final weights — these defaults encode the
// current working assumption (a project submission is worth far more than a
// daily check-in) and every one of them can be overridden with a
// POINT_WEIGHT_* env var. Keep them here, in config, so changing the policy
// never means touching the aggregator.
const (
	DefaultWeightQuestionApproval  = 10
	DefaultWeightProjectSubmission = 25
	DefaultWeightDailyActivity     = 1
	DefaultWeightManualGrant       = 1
)

// Config holds all server configuration, loaded once at startup.
type Config struct {
	Port   int
	DBPath string

	// Auth
	JWTSecret          string
	BcryptCost         int
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// Scoring: points multiplier applied to each ledger entry's delta,
	// keyed by the source that produced it.
	PointWeights map[model.ActivitySource]int64

	// Leaderboard
	AroundRadius int // rows above and below the user in the "around" scope

	// Rate limiting (requests per second per client, with burst)
	RateLimit      float64
	RateLimitBurst int

	// HTTP timeouts
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults for
// everything optional. Only JWT_SECRET is required — without it the server
// cannot issue or validate credentials, so we fail fast instead of booting
// an instance nobody can log in to.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            envInt("PORT", 8080),
		DBPath:          envStr("DB_PATH", "data/campushub.db"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		BcryptCost:      envInt("BCRYPT_COST", 12),
		AroundRadius:    envInt("LEADERBOARD_AROUND_RADIUS", 2),
		RateLimit:       2.0, // 120 req/min
		RateLimitBurst:  envInt("RATE_LIMIT_BURST", 60),
		ShutdownTimeout: 30 * time.Second,
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET must be set")
	}

	cfg.GitHubClientID = os.Getenv("GITHUB_CLIENT_ID")
	cfg.GitHubClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	cfg.GitHubCallbackURL = envStr("GITHUB_CALLBACK_URL",
		fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port))

	if v := os.Getenv("RATE_LIMIT_PER_MIN"); v != "" {
		perMin, err := strconv.Atoi(v)
		if err != nil || perMin <= 0 {
			return nil, fmt.Errorf("config: invalid RATE_LIMIT_PER_MIN %q", v)
		}
		cfg.RateLimit = float64(perMin) / 60.0
	}

	weights, err := loadWeights()
	if err != nil {
		return nil, err
	}
	cfg.PointWeights = weights

	return cfg, nil
}

// loadWeights builds the per-source weight table, starting from the
// documented defaults and applying any POINT_WEIGHT_* overrides.
//
// Weights may be zero (source contributes nothing) but not negative —
// negative corrections belong in the ledger as negative deltas, not in the
// weight table where they would invert every entry from that source.
func loadWeights() (map[model.ActivitySource]int64, error) {
	weights := map[model.ActivitySource]int64{
		model.SourceQuestionApproval:  DefaultWeightQuestionApproval,
		model.SourceProjectSubmission: DefaultWeightProjectSubmission,
		model.SourceDailyActivity:     DefaultWeightDailyActivity,
		model.SourceManualGrant:       DefaultWeightManualGrant,
	}

	overrides := map[model.ActivitySource]string{
		model.SourceQuestionApproval:  "POINT_WEIGHT_QUESTION_APPROVAL",
		model.SourceProjectSubmission: "POINT_WEIGHT_PROJECT_SUBMISSION",
		model.SourceDailyActivity:     "POINT_WEIGHT_DAILY_ACTIVITY",
		model.SourceManualGrant:       "POINT_WEIGHT_MANUAL_GRANT",
	}

	for source, envName := range overrides {
		v := os.Getenv(envName)
		if v == "" {
			continue
		}
		w, err := strconv.ParseInt(v, 10, 64)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("config: invalid %s %q (must be a non-negative integer)", envName, v)
		}
		weights[source] = w
	}

	return weights, nil
}

// envStr returns the env var's value, or def if unset.
func envStr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// envInt returns the env var parsed as an int, or def if unset or invalid.
// Invalid optional values fall back to the default rather than aborting —
// only required or policy-bearing values (like weights) fail loudly.
func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
