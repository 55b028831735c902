package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "CALPROMPT_"

type Application struct {
	Server      Server      `koanf:"server"`
	Log         Log         `koanf:"log"`
	Engine      Engine      `koanf:"engine"`
	Calendar    Calendar    `koanf:"calendar"`
	Resolver    Resolver    `koanf:"resolver"`
	Credentials Credentials `koanf:"credentials"`
	Database    Database    `koanf:"db"`
}

type Server struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"readtimeout"`
	WriteTimeout time.Duration `koanf:"writetimeout"`
	IdleTimeout  time.Duration `koanf:"idletimeout"`
	// RateLimit is the sustained number of prompts per second; zero disables limiting.
	RateLimit float64 `koanf:"ratelimit"`
	RateBurst int     `koanf:"rateburst"`
}

type Log struct {
	Format string `koanf:"format"`
}

type Engine struct {
	Provider  string        `koanf:"provider"`
	APIKey    string        `koanf:"apikey"`
	BaseURL   string        `koanf:"baseurl"`
	Model     string        `koanf:"model"`
	MaxTokens int           `koanf:"maxtokens"`
	Timeout   time.Duration `koanf:"timeout"`
}

type Calendar struct {
	// Backend selects the store adapter: "google" or "caldav".
	Backend    string        `koanf:"backend"`
	CalendarId string        `koanf:"calendarid"`
	CalDAVURL  string        `koanf:"caldavurl"`
	Timeout    time.Duration `koanf:"timeout"`
}

type Resolver struct {
	SearchWindowDays int `koanf:"searchwindowdays"`
}

type Credentials struct {
	// Source is "header" (bearer token on every request) or "postgres" (token rows written by
	// the sign-in service).
	Source string `koanf:"source"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

func Defaults() Application {
	return Application{
		Server: Server{
			Addr:         ":8181",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
			RateLimit:    5,
			RateBurst:    10,
		},
		Log: Log{
			Format: "text",
		},
		Engine: Engine{
			Provider:  "gemini",
			Model:     "gemini-2.0-flash",
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		},
		Calendar: Calendar{
			Backend:    "google",
			CalendarId: "primary",
			Timeout:    15 * time.Second,
		},
		Resolver: Resolver{
			SearchWindowDays: 30,
		},
		Credentials: Credentials{
			Source: "header",
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "calprompt",
			Pass:   "",
			Name:   "calprompt",
			Schema: "calprompt",
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
