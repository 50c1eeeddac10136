package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/seedling/internal/config"
)

// ConfigFileName is the configuration file init writes and the CLI reads.
const ConfigFileName = ".seedling.yml"

const samplePage = `{{/* "front-end" is the page content. Define "html" to replace the default shell. */}}
{{define "front-end"}}<div class="front-end{{if .SSR}} ssr{{end}}">
{{if hasData}}{{with await "page:index" "/pages/index"}}<h1>{{.title}}</h1>{{end}}{{else}}<h1>Seedling</h1>{{end}}
{{require "partials/footer.html"}}
</div>{{end}}
`

const sampleFooter = `<footer>Rendered from {{filename}} for {{.PagePath}}</footer>`

const sampleBundle = `// Client bundle. Replace with the output of your bundler.
`

// ErrProjectExists is returned when init would overwrite existing files.
var ErrProjectExists = errors.New("project already initialized")

// InitService scaffolds a seedling project.
type InitService struct{}

// NewInitService creates a new initialization service
func NewInitService() *InitService {
	return &InitService{}
}

// InitOptions contains options for project initialization
type InitOptions struct {
	ProjectDir string

	// DataSourceURL is written as data_source.base_url when set.
	DataSourceURL string

	// Minimal skips the sample partial.
	Minimal bool

	// Force overwrites existing files.
	Force bool
}

// InitProject writes the configuration file, a sample module and the
// assets directory. It returns the paths it wrote.
func (s *InitService) InitProject(opts InitOptions) ([]string, error) {
	dir := opts.ProjectDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}

	cfg, err := s.defaultConfig(opts)
	if err != nil {
		return nil, err
	}
	rawConfig, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}

	files := []struct {
		path    string
		content []byte
	}{
		{ConfigFileName, rawConfig},
		{cfg.Render.Module, []byte(samplePage)},
		{filepath.Join(cfg.Render.AssetsDir, cfg.Render.BundleScript), []byte(sampleBundle)},
	}
	if !opts.Minimal {
		files = append(files, struct {
			path    string
			content []byte
		}{filepath.Join(filepath.Dir(cfg.Render.Module), "partials", "footer.html"), []byte(sampleFooter)})
	} else {
		files[1].content = []byte(`{{define "front-end"}}<div class="front-end{{if .SSR}} ssr{{end}}"><h1>Seedling</h1></div>{{end}}` + "\n")
	}

	if !opts.Force {
		for _, f := range files {
			path := filepath.Join(dir, f.path)
			if _, err := os.Stat(path); err == nil {
				return nil, fmt.Errorf("%w: %s exists", ErrProjectExists, path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("checking %s: %w", path, err)
			}
		}
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, f.content, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func (s *InitService) defaultConfig(opts InitOptions) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("data_source.base_url", opts.DataSourceURL)

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding default configuration: %w", err)
	}
	cfg.Render.Mode = config.ModeTemplate
	if result := config.ValidateConfigWithDetails(&cfg); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", &result.Errors[0])
	}
	return &cfg, nil
}
