package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a plansync.yaml config through an interactive form",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

// initConfig mirrors the plansync.yaml layout.
type initConfig struct {
	Journal string            `yaml:"journal,omitempty"`
	Grist   map[string]string `yaml:"grist"`
	IObeya  map[string]string `yaml:"iobeya"`
	GitHub  map[string]string `yaml:"github"`
}

func runInit() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("init needs an interactive terminal; write plansync.yaml by hand instead")
	}
	if _, err := os.Stat("plansync.yaml"); err == nil {
		return fmt.Errorf("plansync.yaml already exists; remove it first")
	}

	var (
		gristKey, gristDoc                     string
		iobeyaURL, iobeyaToken, iobeyaBoard    string
		ghToken, ghOwner, ghRepo, ghProjectNum string
	)

	required := func(name string) func(string) error {
		return func(s string) error {
			if s == "" {
				return fmt.Errorf("%s is required", name)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Grist API key").
				Description("From your Grist profile settings").
				Value(&gristKey).
				Validate(required("API key")),
			huh.NewInput().
				Title("Grist document id").
				Placeholder("e.g. 6r9dqrAhmrkF").
				Value(&gristDoc).
				Validate(required("document id")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("iObeya platform URL").
				Placeholder("https://yourcompany.iobeya.com").
				Value(&iobeyaURL).
				Validate(required("platform URL")),
			huh.NewInput().
				Title("iObeya API token").
				Value(&iobeyaToken).
				Validate(required("API token")),
			huh.NewInput().
				Title("iObeya board id").
				Value(&iobeyaBoard).
				Validate(required("board id")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub token").
				Description("Needs repo and project scopes").
				Value(&ghToken).
				Validate(required("token")),
			huh.NewInput().
				Title("GitHub owner").
				Placeholder("org or user").
				Value(&ghOwner).
				Validate(required("owner")),
			huh.NewInput().
				Title("GitHub repository").
				Value(&ghRepo).
				Validate(required("repository")),
			huh.NewInput().
				Title("GitHub project number").
				Placeholder("the ProjectV2 number, e.g. 5").
				Value(&ghProjectNum).
				Validate(required("project number")),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	cfg := initConfig{
		Grist: map[string]string{
			"api_key": gristKey,
			"doc_id":  gristDoc,
		},
		IObeya: map[string]string{
			"url":      iobeyaURL,
			"token":    iobeyaToken,
			"board_id": iobeyaBoard,
		},
		GitHub: map[string]string{
			"token":          ghToken,
			"owner":          ghOwner,
			"repo":           ghRepo,
			"project_number": ghProjectNum,
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile("plansync.yaml", data, 0o600); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("Wrote plansync.yaml."))
	fmt.Println(mutedStyle.Render("Credentials can also come from PLANSYNC_* environment variables."))
	return nil
}
