package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds device defaults so that frequently used bus parameters do not
// have to be repeated on every invocation. Flag values always win over the
// file.
type Config struct {
	I2C struct {
		Adapter  string `yaml:"adapter"`
		Device   string `yaml:"device"`
		SpeedkHz int    `yaml:"speed_khz"`
	} `yaml:"i2c"`
	Flash struct {
		Bus      string `yaml:"bus"`
		ChipSel  byte   `yaml:"chip_select"`
		SpeedMHz int    `yaml:"speed_mhz"`
	} `yaml:"flash"`
}

var config Config

func init() {
	config.I2C.Adapter = "mcp2221"
	config.I2C.Device = "/dev/i2c-1"
	config.I2C.SpeedkHz = 100
	config.Flash.Bus = "spi"
	config.Flash.SpeedMHz = 5
}

func loadConfig(path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return fmt.Errorf("could not parse config file: %w", err)
	}
	return nil
}
