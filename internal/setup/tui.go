package setup

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/arena/config"
)

// DefaultFile is where the wizard writes the generated config.
const DefaultFile = "arena.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collects what the wizard asks for.
type Answers struct {
	Addr              string
	UpstreamURL       string
	Timeout           string
	RateLimit         string
	BroadcastInterval string
	JournalDir        string
	LogLevel          string
	Domains           string
}

func defaultAnswers() Answers {
	d := config.Default()
	return Answers{
		Addr:              d.Addr,
		UpstreamURL:       d.UpstreamURL,
		Timeout:           d.UpstreamTimeout.String(),
		RateLimit:         "0",
		BroadcastInterval: d.BroadcastInterval.String(),
		LogLevel:          d.LogLevel.String(),
	}
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	a := defaultAnswers()
	var confirm bool

	showStep := func(step string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("ARENA RELAY WIZARD"))
		fmt.Println(stepStyle.Render(step))
	}

	showStep("STEP 1: TRADING ENGINE")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point the relay at your engine.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Engine URL").
				Description("Base URL serving /api/state").
				Value(&a.UpstreamURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Request timeout").
				Description("Duration string (e.g. 15s)").
				Value(&a.Timeout).
				Validate(validateDuration),
			huh.NewInput().
				Title("Rate limit").
				Description("Upstream requests per second, 0 = unlimited").
				Value(&a.RateLimit).
				Validate(validateRate),
		),
	).Run()
	if err != nil {
		return err
	}

	showStep("STEP 2: RELAY")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&a.Addr),
			huh.NewInput().
				Title("Broadcast interval").
				Description("How often connected sockets get a fresh state").
				Value(&a.BroadcastInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Journal directory").
				Description("Leave empty to disable snapshot history").
				Value(&a.JournalDir),
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&a.LogLevel),
			huh.NewInput().
				Title("TLS domains").
				Description("Comma separated, empty serves plain HTTP").
				Value(&a.Domains),
		),
	).Run()
	if err != nil {
		return err
	}

	showStep("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Engine: %s\nListen: %s\nBroadcast: %s\nJournal: %s\n",
		a.UpstreamURL, a.Addr, a.BroadcastInterval, orDisabled(a.JournalDir),
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	if err := Write(path, a); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

// Write validates the answers and stores them as YAML.
func Write(path string, a Answers) error {
	tmp, err := a.configTmp()
	if err != nil {
		return err
	}
	if _, err := tmp.Build(); err != nil {
		return err
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func (a Answers) configTmp() (config.ConfigTmp, error) {
	timeout, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "timeout")
	}
	interval, err := time.ParseDuration(a.BroadcastInterval)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "broadcast interval")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(a.RateLimit))
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "rate limit")
	}

	var domains []string
	for _, d := range strings.Split(a.Domains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}

	return config.ConfigTmp{
		Addr:              a.Addr,
		UpstreamURL:       a.UpstreamURL,
		UpstreamTimeout:   timeout,
		UpstreamRateLimit: rate.InexactFloat64(),
		UpstreamBurst:     1,
		BroadcastInterval: interval,
		JournalDir:        a.JournalDir,
		LogLevel:          levelName(a.LogLevel),
		TLS:               config.TLSTmp{Domains: domains},
	}, nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) url")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func validateRate(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a valid number")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}

// levelName keeps zap's spelling of the level in the generated file.
func levelName(s string) string {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return s
	}
	return l.String()
}
