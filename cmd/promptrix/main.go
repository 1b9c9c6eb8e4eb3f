package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration. Every field has an
// environment or built-in fallback, so running without a config file
// is fully supported.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	LLM struct {
		Backend string `yaml:"backend"` // "openai" or "ollama"
	} `yaml:"llm"`
	Auth struct {
		Token string `yaml:"token"`
	} `yaml:"auth"`
}

var (
	config     Config
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			// The config file is optional; env vars and defaults cover
			// everything it would set.
			return
		}
		if err := yaml.Unmarshal(yamlFile, &config); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
	}
}
