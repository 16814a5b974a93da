package main

import (
	"fmt"
	"os"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sunshine-protocol/bounty-bot/cmd"
	"github.com/sunshine-protocol/bounty-bot/gbot"
	"github.com/sunshine-protocol/bounty-bot/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "BOT_CONFIG"
)

func main() {
	pflag.String("config", "", "configuration file (any format viper reads), defaults to $"+ENV_CONFIG_FILE_PATH)
	pflag.Parse()

	// Tool to read environment variables
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.BindPFlag("config", pflag.Lookup("config")); err != nil {
		fmt.Printf("Error binding flags, %s\n", err)
		os.Exit(1)
	}

	_config_file := viper.GetString("config")
	if _config_file == "" {
		_config_file = viper.GetString(ENV_CONFIG_FILE_PATH)
	}

	// Without a file everything comes from the environment.
	if _config_file != "" {
		fmt.Printf("Bot server configuration file = %s\n", _config_file)
		if !cmd.FileExists(_config_file) {
			fmt.Printf("Bot server configuration file not found: %s\n", _config_file)
			os.Exit(1)
		}
		if !initializeViper(_config_file) {
			os.Exit(1)
		}
	}

	if err := logconfig.Configure(viper.GetString("LOG_LEVEL"), viper.GetString("LOG_FORMAT")); err != nil {
		fmt.Printf("Error configuring logger, %s\n", err)
		os.Exit(1)
	}

	bsc := PrepareBotServerConfig()

	fmt.Println("Starting bot server... press Ctrl+C to kill the server")
	// Start server and block.
	if err := cmd.StartBotServerAndWait(bsc); err != nil {
		logger.Fatalf("bot server stopped: %v", err)
	}
}

func setDefaults() {
	viper.SetDefault("CHAIN_RETRO_SCAN_BLK", -1)
	viper.SetDefault("GITHUB_API_URL", gbot.DefaultBaseURL)
	viper.SetDefault("GITHUB_DRY_RUN", false)
	viper.SetDefault("GITHUB_RATE_PER_SEC", cmd.DefaultGithubRatePerSec)
	viper.SetDefault("GITHUB_BURST", cmd.DefaultGithubBurst)
	viper.SetDefault("HTTP_IP", "0.0.0.0")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("RESUBSCRIBE_BACKOFF", cmd.DefaultResubscribeBackoff)
	viper.SetDefault("APPLY_TIMEOUT", cmd.DefaultApplyTimeout)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s\n", err)
		return false
	}
	return true
}

// PrepareBotServerConfig reads configuration variables and returns a BotServerConfig.
func PrepareBotServerConfig() *cmd.BotServerConfig {
	return &cmd.BotServerConfig{
		// chain side
		ChainRpcUrl:        viper.GetString("CHAIN_RPC_URL"),
		BountyContractAddr: viper.GetString("BOUNTY_CONTRACT_ADDR"),
		ChainRetroScanBlk:  viper.GetInt64("CHAIN_RETRO_SCAN_BLK"),
		// off-chain side
		OffchainGatewayUrl: viper.GetString("OFFCHAIN_GATEWAY_URL"),
		DbFilePath:         viper.GetString("DB_FILE_PATH"),
		RedisAddr:          viper.GetString("REDIS_ADDR"),
		RedisPassword:      viper.GetString("REDIS_PASSWORD"),
		RedisDb:            viper.GetInt("REDIS_DB"),
		// github side
		GithubApiUrl:     viper.GetString("GITHUB_API_URL"),
		GithubToken:      viper.GetString("GITHUB_TOKEN"),
		GithubDryRun:     viper.GetBool("GITHUB_DRY_RUN"),
		GithubRatePerSec: viper.GetFloat64("GITHUB_RATE_PER_SEC"),
		GithubBurst:      viper.GetInt("GITHUB_BURST"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),

		ResubscribeBackoff: viper.GetDuration("RESUBSCRIBE_BACKOFF"),
		ApplyTimeout:       viper.GetDuration("APPLY_TIMEOUT"),
	}
}
