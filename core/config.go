package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		CORSOrigins     []string
		MaxUploadSize   string // echo BodyLimit format, eg. "32M"
	}

	// ModelConfig holds the gradient boosting hyper-parameters.
	ModelConfig struct {
		Rounds         int
		MaxDepth       int
		LearningRate   float64
		Lambda         float64
		Gamma          float64
		MinChildWeight float64
		MinSamplesLeaf int
	}

	// RiskConfig holds the thresholds of the at-risk label.
	RiskConfig struct {
		AttendanceThreshold float64
		MarksThreshold      float64
	}

	Config struct {
		Env          string
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string
		RollbarToken string
		Server       ServerConfig
		Model        ModelConfig
		Risk         RiskConfig
	}
)

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if it exists) and the environment.
// Environment variables are prefixed with the current env, eg. DEV_SERVER_ADDRESS.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			CORSOrigins:     v.GetStringSlice("server.corsOrigins"),
			MaxUploadSize:   v.GetString("server.maxUploadSize"),
		},
		Model: ModelConfig{
			Rounds:         v.GetInt("model.rounds"),
			MaxDepth:       v.GetInt("model.maxDepth"),
			LearningRate:   v.GetFloat64("model.learningRate"),
			Lambda:         v.GetFloat64("model.lambda"),
			Gamma:          v.GetFloat64("model.gamma"),
			MinChildWeight: v.GetFloat64("model.minChildWeight"),
			MinSamplesLeaf: v.GetInt("model.minSamplesLeaf"),
		},
		Risk: RiskConfig{
			AttendanceThreshold: v.GetFloat64("risk.attendanceThreshold"),
			MarksThreshold:      v.GetFloat64("risk.marksThreshold"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "EUDG")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 60*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.corsOrigins", []string{"http://localhost:3000", "https://eudg.netlify.app"})
	v.SetDefault("server.maxUploadSize", "32M")

	// xgboost-like defaults; minChildWeight is relaxed so small cohorts can still split
	v.SetDefault("model.rounds", 100)
	v.SetDefault("model.maxDepth", 6)
	v.SetDefault("model.learningRate", 0.3)
	v.SetDefault("model.lambda", 1.0)
	v.SetDefault("model.gamma", 0.0)
	v.SetDefault("model.minChildWeight", 0.0)
	v.SetDefault("model.minSamplesLeaf", 1)

	v.SetDefault("risk.attendanceThreshold", 75.0)
	v.SetDefault("risk.marksThreshold", 60.0)
}
