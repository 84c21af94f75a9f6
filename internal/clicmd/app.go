// Package clicmd is the `hk` CLI surface (spec §6.2): one file per
// subcommand, dispatched by github.com/mitchellh/cli with per-subcommand
// github.com/jessevdk/go-flags option structs, matching the teacher's
// internal/commands layout.
package clicmd

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jdx/hk/internal/gitrepo"
	"github.com/jdx/hk/internal/hkcache"
	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/obs"
)

// App bundles the ambient dependencies every subcommand needs: the
// repository backend, the resolved configuration, the cache, and a
// logger, threaded explicitly rather than read from package-level state
// (spec §9: "replace process-wide singletons... with an explicitly
// constructed Run context").
type App struct {
	Backend  gitrepo.Backend
	Resolved *hkconfig.Resolved
	Cache    *hkcache.Manager
	Logger   *obs.Logger
	Getenv   func(string) string
}

// CommonOptions are flags every selector-bearing subcommand (check/fix/run)
// shares, matching the teacher's CommonOptions shape.
type CommonOptions struct {
	Jobs        int      `long:"jobs"         description:"number of parallel workers" short:"j"`
	FailFast    bool     `long:"fail-fast"     description:"stop after the first failed job"`
	NoFailFast  bool     `long:"no-fail-fast"  description:"run every job even after a failure"`
	Stage       bool     `long:"stage"         description:"git add fixer output"`
	NoStage     bool     `long:"no-stage"      description:"do not stage fixer output"`
	All         bool     `long:"all"           description:"run against every tracked and untracked file"`
	FromRef     string   `long:"from-ref"      description:"diff base ref"`
	ToRef       string   `long:"to-ref"        description:"diff target ref (default HEAD)"`
	PR          bool     `long:"pr"            description:"run against files changed since the default branch"`
	Step        []string `long:"step"          description:"run only this step (repeatable)"`
	SkipStep    []string `long:"skip-step"     description:"skip this step (repeatable)"`
	Profile     []string `long:"profile"       description:"enable this profile (repeatable)"`
	Slow        bool     `long:"slow"          description:"disable ARG_MAX auto-batching"`
	Plan        bool     `long:"plan"          description:"print the plan instead of running it"`
	PlanJSON    bool     `long:"plan-json"     description:"print the plan as JSON instead of running it"`
	JSON        bool     `long:"json"          description:"JSON output for --plan"`
	Why         string   `long:"why"           description:"explain why a step is (or isn't) planned" optional:"true" optional-value:"*"`
}

// NewApp opens the repository at the current directory, loads and merges
// every configuration layer (spec §6.1), and opens the document cache
// unless disabled via HK_CACHE.
func NewApp(getenv func(string) string) (*App, error) {
	backend, err := gitrepo.Open("", gitrepo.KindFromEnv(getenv))
	if err != nil {
		return nil, err
	}
	logger := obs.New(os.Stderr, getenv)

	var cache *hkcache.Manager
	if cacheEnabled(getenv) {
		cache, err = hkcache.NewManager(stateDir(getenv, backend.Root()) + "/cache")
		if err != nil {
			logger.Warn("cache unavailable, continuing without it", "err", err)
			cache = nil
		}
	}

	projectPath, localPath, userPath := hkconfig.Locate(backend.Root(), getenv, "")
	project, err := hkconfig.LoadDocumentCached(projectPath, true, cache)
	if err != nil {
		return nil, err
	}
	local, err := hkconfig.LoadDocumentCached(localPath, false, cache)
	if err != nil {
		return nil, err
	}
	user, err := hkconfig.LoadDocumentCached(userPath, false, cache)
	if err != nil {
		return nil, err
	}

	gitCfg := hkconfig.GitConfigOverrides(gitConfigGetter(backend.Root()))
	env := hkconfig.LoadEnvOverrides(getenv)
	resolved, err := hkconfig.Merge([]*hkconfig.Document{project, local, user}, gitCfg, env, hkconfig.CLIOverrides{})
	if err != nil {
		return nil, err
	}

	return &App{Backend: backend, Resolved: resolved, Cache: cache, Logger: logger, Getenv: getenv}, nil
}

// Close releases the app's resources (the document cache's database
// handle). Commands defer this immediately after NewApp succeeds.
func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
}

// gitConfigGetter backs hkconfig.GitConfigOverrides with the repository's
// actual git config (hk.exclude, hk.jobs, hk.failFast, hk.profile; spec
// §6.1's "git config" precedence layer), shelling out the same way the
// rest of this package's condition evaluation does.
func gitConfigGetter(repoRoot string) func(section, key string) (string, bool) {
	return func(section, key string) (string, bool) {
		cmd := exec.Command("git", "config", "--get", section+"."+key)
		cmd.Dir = repoRoot
		out, err := cmd.Output()
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(string(out)), true
	}
}

func cacheEnabled(getenv func(string) string) bool {
	v := getenv("HK_CACHE")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

// stateDir resolves $HK_STATE_DIR, defaulting to a per-repo directory
// under the user's cache directory (spec §6.4).
func stateDir(getenv func(string) string, repoRoot string) string {
	if v := getenv("HK_STATE_DIR"); v != "" {
		return v
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "hk", sanitizeRepoName(repoRoot))
}

func sanitizeRepoName(root string) string {
	name := filepath.Base(root)
	return strings.ReplaceAll(name, string(filepath.Separator), "_")
}
