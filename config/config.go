package config

import (
	"flag"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	sc "github.com/sksmith/go-spring-config"
	"github.com/spf13/viper"
)

const (
	AppName  = "Allocation Service"
	Revision = "1"

	envPrefix  = "ALLOCATION"
	maxRetries = 5
)

var (
	// Build time arguments
	AppVersion  string
	Sha1Version string
	BuildTime   string

	// Runtime flags
	profile      *string
	configSource *string
	configUrl    *string
	configBranch *string
	configUser   *string
	configPass   *string
)

type Config struct {
	AppName         string       `json:"appName"         yaml:"appName"`
	AppNameDesc     string       `json:"appNameDesc"     yaml:"appNameDesc"`
	AppVersion      string       `json:"appVersion"      yaml:"appVersion"`
	AppVersionDesc  string       `json:"appVersionDesc"  yaml:"appVersionDesc"`
	Sha1Version     string       `json:"sha1Version"     yaml:"sha1Version"`
	Sha1VersionDesc string       `json:"sha1VersionDesc" yaml:"sha1VersionDesc"`
	BuildTime       string       `json:"buildTime"       yaml:"buildTime"`
	BuildTimeDesc   string       `json:"buildTimeDesc"   yaml:"buildTimeDesc"`
	Profile         string       `json:"profile"         yaml:"profile"`
	ProfileDesc     string       `json:"profileDesc"     yaml:"profileDesc"`
	Revision        string       `json:"revision"        yaml:"revision"`
	RevisionDesc    string       `json:"revisionDesc"    yaml:"revisionDesc"`
	Port            string       `json:"port"            yaml:"port"`
	PortDesc        string       `json:"portDesc"        yaml:"portDesc"`
	Config          ConfigSource `json:"config"          yaml:"config"`
	ConfigDesc      string       `json:"configDesc"      yaml:"configDesc"`
	Log             LogConfig    `json:"log"             yaml:"log"`
	LogDesc         string       `json:"logDesc"         yaml:"logDesc"`
	Db              DbConfig     `json:"db"              yaml:"db"`
	DbDesc          string       `json:"dbDesc"          yaml:"dbDesc"`
	RabbitMQ        QueueConfig  `json:"rabbitmq"        yaml:"rabbitmq"`
	RabbitMQDesc    string       `json:"rabbitmqDesc"    yaml:"rabbitmqDesc"`
	Redis           RedisConfig  `json:"redis"           yaml:"redis"`
	RedisDesc       string       `json:"redisDesc"       yaml:"redisDesc"`
	Bus             BusConfig    `json:"bus"             yaml:"bus"`
	BusDesc         string       `json:"busDesc"         yaml:"busDesc"`
	Notify          NotifyConfig `json:"notify"          yaml:"notify"`
	NotifyDesc      string       `json:"notifyDesc"      yaml:"notifyDesc"`
}

type ConfigSource struct {
	Print      bool         `json:"print"      yaml:"print"`
	PrintDesc  string       `json:"printDesc"  yaml:"printDesc"`
	Source     string       `json:"source"     yaml:"source"`
	SourceDesc string       `json:"sourceDesc" yaml:"sourceDesc"`
	Spring     SpringConfig `json:"spring"     yaml:"spring"`
	SpringDesc string       `json:"springDesc" yaml:"springDesc"`
}

type SpringConfig struct {
	Url        string `json:"url"        yaml:"url"`
	UrlDesc    string `json:"urlDesc"    yaml:"urlDesc"`
	Branch     string `json:"branch"     yaml:"branch"`
	BranchDesc string `json:"branchDesc" yaml:"branchDesc"`
	User       string `json:"user"       yaml:"user"`
	UserDesc   string `json:"userDesc"   yaml:"userDesc"`
	Pass       string `json:"pass"       yaml:"pass"       sensitive:"true"`
	PassDesc   string `json:"passDesc"   yaml:"passDesc"`
}

type LogConfig struct {
	Level          string `json:"level"          yaml:"level"`
	LevelDesc      string `json:"levelDesc"      yaml:"levelDesc"`
	Structured     bool   `json:"structured"     yaml:"structured"`
	StructuredDesc string `json:"structuredDesc" yaml:"structuredDesc"`
}

type DbConfig struct {
	Name         string       `json:"name"         yaml:"name"`
	NameDesc     string       `json:"nameDesc"     yaml:"nameDesc"`
	Host         string       `json:"host"         yaml:"host"`
	HostDesc     string       `json:"hostDesc"     yaml:"hostDesc"`
	Port         string       `json:"port"         yaml:"port"`
	PortDesc     string       `json:"portDesc"     yaml:"portDesc"`
	Migrate      bool         `json:"migrate"      yaml:"migrate"`
	MigrateDesc  string       `json:"migrateDesc"  yaml:"migrateDesc"`
	Clean        bool         `json:"clean"        yaml:"clean"`
	CleanDesc    string       `json:"cleanDesc"    yaml:"cleanDesc"`
	InMemory     bool         `json:"inMemory"     yaml:"inMemory"`
	InMemoryDesc string       `json:"inMemoryDesc" yaml:"inMemoryDesc"`
	User         string       `json:"user"         yaml:"user"`
	UserDesc     string       `json:"userDesc"     yaml:"userDesc"`
	Pass         string       `json:"pass"         yaml:"pass"         sensitive:"true"`
	PassDesc     string       `json:"passDesc"     yaml:"passDesc"`
	Pool         DbPoolConfig `json:"pool"         yaml:"pool"`
	PoolDesc     string       `json:"poolDesc"     yaml:"poolDesc"`
}

type DbPoolConfig struct {
	MinSize     int    `json:"minSize"     yaml:"minSize"`
	MinSizeDesc string `json:"minSizeDesc" yaml:"minSizeDesc"`
	MaxSize     int    `json:"maxSize"     yaml:"maxSize"`
	MaxSizeDesc string `json:"maxSizeDesc" yaml:"maxSizeDesc"`
}

type QueueConfig struct {
	Host        string             `json:"host"        yaml:"host"`
	HostDesc    string             `json:"hostDesc"    yaml:"hostDesc"`
	Port        string             `json:"port"        yaml:"port"`
	PortDesc    string             `json:"portDesc"    yaml:"portDesc"`
	User        string             `json:"user"        yaml:"user"`
	UserDesc    string             `json:"userDesc"    yaml:"userDesc"`
	Pass        string             `json:"pass"        yaml:"pass"        sensitive:"true"`
	PassDesc    string             `json:"passDesc"    yaml:"passDesc"`
	Mock        bool               `json:"mock"        yaml:"mock"`
	MockDesc    string             `json:"mockDesc"    yaml:"mockDesc"`
	Event       EventQueueConfig   `json:"event"       yaml:"event"`
	EventDesc   string             `json:"eventDesc"   yaml:"eventDesc"`
	Command     CommandQueueConfig `json:"command"     yaml:"command"`
	CommandDesc string             `json:"commandDesc" yaml:"commandDesc"`
}

type EventQueueConfig struct {
	Exchange     string `json:"exchange"     yaml:"exchange"`
	ExchangeDesc string `json:"exchangeDesc" yaml:"exchangeDesc"`
}

type CommandQueueConfig struct {
	Queue     string         `json:"queue"     yaml:"queue"`
	QueueDesc string         `json:"queueDesc" yaml:"queueDesc"`
	Dlt       QueueDltConfig `json:"dlt"       yaml:"dlt"`
	DltDesc   string         `json:"dltDesc"   yaml:"dltDesc"`
}

type QueueDltConfig struct {
	Exchange     string `json:"exchange"     yaml:"exchange"`
	ExchangeDesc string `json:"exchangeDesc" yaml:"exchangeDesc"`
}

type RedisConfig struct {
	Enabled           bool   `json:"enabled"           yaml:"enabled"`
	EnabledDesc       string `json:"enabledDesc"       yaml:"enabledDesc"`
	Addr              string `json:"addr"              yaml:"addr"`
	AddrDesc          string `json:"addrDesc"          yaml:"addrDesc"`
	Pass              string `json:"pass"              yaml:"pass"              sensitive:"true"`
	PassDesc          string `json:"passDesc"          yaml:"passDesc"`
	Db                int    `json:"db"                yaml:"db"`
	DbDesc            string `json:"dbDesc"            yaml:"dbDesc"`
	ChannelPrefix     string `json:"channelPrefix"     yaml:"channelPrefix"`
	ChannelPrefixDesc string `json:"channelPrefixDesc" yaml:"channelPrefixDesc"`
}

type BusConfig struct {
	Retries        int    `json:"retries"        yaml:"retries"`
	RetriesDesc    string `json:"retriesDesc"    yaml:"retriesDesc"`
	DedupeSize     int    `json:"dedupeSize"     yaml:"dedupeSize"`
	DedupeSizeDesc string `json:"dedupeSizeDesc" yaml:"dedupeSizeDesc"`
}

type NotifyConfig struct {
	Staff     string `json:"staff"     yaml:"staff"`
	StaffDesc string `json:"staffDesc" yaml:"staffDesc"`
}

func (c *Config) Print() {
	if c.Config.Print {
		log.Info().Interface("config", c).Msg("the following configurations have successfully loaded")
	}
}

func init() {
	profile = flag.String("p", "local", "profile for the application config")
	configSource = flag.String("s", "local", "where to get configurations from")
	configUrl = flag.String("cfgUrl", "", "url for application config server")
	configBranch = flag.String("cfgBranch", "", "branch to request from the configuration server (used for spring cloud config)")
	configUser = flag.String("cfgUser", "", "username to use when connecting to the application server")
	configPass = flag.String("cfgPass", "", "password to use when connecting to the application server")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("profile", "local")

	v.SetDefault("config.print", false)

	v.SetDefault("log.level", "trace")
	v.SetDefault("log.structured", false)

	v.SetDefault("db.name", "allocation-db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.pass", "postgres")
	v.SetDefault("db.migrate", true)
	v.SetDefault("db.clean", false)
	v.SetDefault("db.inMemory", false)
	v.SetDefault("db.pool.minSize", 1)
	v.SetDefault("db.pool.maxSize", 10)

	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", "5672")
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.pass", "guest")
	v.SetDefault("rabbitmq.mock", false)
	v.SetDefault("rabbitmq.event.exchange", "allocation.event.exchange")
	v.SetDefault("rabbitmq.command.queue", "allocation.command.queue")
	v.SetDefault("rabbitmq.command.dlt.exchange", "allocation.command.dlt.exchange")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pass", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channelPrefix", "allocation.")

	v.SetDefault("bus.retries", 3)
	v.SetDefault("bus.dedupeSize", 1024)

	v.SetDefault("notify.staff", "staff@example.com")
}

// Load reads the named yaml file (without extension) from the working
// directory, or the spring cloud config server when the -s flag says so.
// Environment variables such as ALLOCATION_DB_HOST override either.
func Load(name string) *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	config := createConfig()
	v := newViper()

	var err error
	switch *configSource {
	case "local":
		err = loadLocalConfigs(v, name)
	case "spring":
		err = loadRemoteConfigs(v, config)
	default:
		log.Warn().
			Str("configSource", *configSource).
			Msg("unrecognized configuration source, using local")

		err = loadLocalConfigs(v, name)
	}
	if err == nil {
		err = v.Unmarshal(config)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configurations")
	}

	return config
}

// LoadDefaults returns the configuration without reading any file or server.
func LoadDefaults() *Config {
	config := createConfig()
	if err := newViper().Unmarshal(config); err != nil {
		log.Fatal().Err(err).Msg("failed to load default configurations")
	}
	return config
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetDefault("profile", *profile)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func createConfig() *Config {
	config := &Config{}
	setDescriptions(config)

	config.Config.Source = *configSource

	config.Config.Spring.Url = *configUrl
	config.Config.Spring.Branch = *configBranch
	config.Config.Spring.User = *configUser
	config.Config.Spring.Pass = *configPass

	config.AppName = AppName
	config.AppVersion = AppVersion
	config.Sha1Version = Sha1Version
	config.BuildTime = BuildTime
	config.Revision = Revision

	return config
}

func loadLocalConfigs(v *viper.Viper, name string) error {
	log.Info().Str("name", name).Msg("loading local configurations...")

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	return errors.WithStack(v.ReadInConfig())
}

func loadRemoteConfigs(v *viper.Viper, config *Config) error {
	log.Info().Str("url", config.Config.Spring.Url).Msg("loading remote configurations...")

	var remote *sc.Config
	var err error

	for tryCount := 1; tryCount <= maxRetries; tryCount++ {
		remote, err = sc.LoadWithCreds(
			config.Config.Spring.Url,
			AppName,
			config.Config.Spring.Branch,
			config.Config.Spring.User,
			config.Config.Spring.Pass,
			*profile)
		if err == nil {
			break
		}
		log.Error().Err(err).Int("try", tryCount).Msg("failed to load configurations... retrying")
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return errors.WithStack(err)
	}

	for k, val := range remote.Values {
		v.Set(k, val)
	}
	return nil
}

func setDescriptions(config *Config) {
	config.AppNameDesc = "Name of the application in a human readable format. Example: Allocation Service"
	config.AppVersionDesc = "Semantic version of the application. Example: v1.2.3"
	config.Sha1VersionDesc = "Git sha1 hash of the application version."
	config.BuildTimeDesc = "When the application was compiled."
	config.ProfileDesc = "Running profile of the application, can assist with sensible defaults or change behavior. Examples: local, dev, prod"
	config.RevisionDesc = "A hard coded revision handy for quickly determining if local changes are running. Examples: 1, Two, 9999"
	config.PortDesc = "Port that the application will bind to on startup. Examples: 8080, 3000"
	config.ConfigDesc = "Settings for where and how the application should get its configurations."
	config.LogDesc = "Settings for applicaton logging."
	config.DbDesc = "Database configurations."
	config.RabbitMQDesc = "RabbitMQ configurations."
	config.RedisDesc = "Redis configurations for the external event bus."
	config.BusDesc = "Settings for the internal message bus."
	config.NotifyDesc = "Settings for staff notifications."

	config.Config.PrintDesc = "Print configurations on startup."
	config.Config.SourceDesc = "Where the application should go for configurations. Examples: local, spring"
	config.Config.SpringDesc = "Configuration settings for Spring Cloud Config. These are only used if config.source is spring."

	config.Config.Spring.UrlDesc = "The url of the Spring Cloud Config server."
	config.Config.Spring.BranchDesc = "The git branch to use to pull configurations from. Examples: main, master, development"
	config.Config.Spring.UserDesc = "User to use when connecting to the Spring Cloud Config server."
	config.Config.Spring.PassDesc = "Password to use when connecting to the Spring Cloud Config server."

	config.Log.LevelDesc = "The lowest level that the application should log at. Examples: info, warn, error."
	config.Log.StructuredDesc = "Whether the application should output structured (json) logging, or human friendly plain text."

	config.Db.NameDesc = "The name of the database to connect to."
	config.Db.HostDesc = "Host of the database."
	config.Db.PortDesc = "Port of the database."
	config.Db.MigrateDesc = "Whether or not database migrations should be executed on startup."
	config.Db.CleanDesc = "WARNING: THIS WILL DELETE ALL DATA FROM THE DB. Used only during migration. If clean is true, all 'down' migrations are executed."
	config.Db.InMemoryDesc = "Whether or not the application should keep products in memory instead of the database."
	config.Db.UserDesc = "User the application will use to connect to the database."
	config.Db.PassDesc = "Password the application will use for connecting to the database."
	config.Db.PoolDesc = "Connection pool settings."
	config.Db.Pool.MinSizeDesc = "The fewest connections the pool keeps open."
	config.Db.Pool.MaxSizeDesc = "The most connections the pool will open."

	config.RabbitMQ.HostDesc = "RabbitMQ's broker host."
	config.RabbitMQ.PortDesc = "RabbitMQ's broker host port."
	config.RabbitMQ.UserDesc = "User the application will use to connect to RabbitMQ."
	config.RabbitMQ.PassDesc = "Password the application will use to connect to RabbitMQ."
	config.RabbitMQ.MockDesc = "Whether or not the application should mock sending messages to RabbitMQ."
	config.RabbitMQ.EventDesc = "RabbitMQ settings for outgoing allocation events."
	config.RabbitMQ.Event.ExchangeDesc = "RabbitMQ exchange that every committed allocation event is posted to."
	config.RabbitMQ.CommandDesc = "RabbitMQ settings for incoming allocation commands."
	config.RabbitMQ.Command.QueueDesc = "Queue used for listening to allocation commands from other systems."
	config.RabbitMQ.Command.DltDesc = "Configurations for the command dead letter topic, where messages that fail to be handled are written."
	config.RabbitMQ.Command.Dlt.ExchangeDesc = "Exchange used for posting messages to the dead letter topic."

	config.Redis.EnabledDesc = "Whether allocation events are published to redis."
	config.Redis.AddrDesc = "Address of the redis server. Example: localhost:6379"
	config.Redis.PassDesc = "Password for the redis server."
	config.Redis.DbDesc = "Redis logical database number."
	config.Redis.ChannelPrefixDesc = "Prefix put in front of the event name to build the redis channel."

	config.Bus.RetriesDesc = "How many times a command that lost a concurrent update is retried."
	config.Bus.DedupeSizeDesc = "How many recently handled command ids are remembered to skip redelivered commands."

	config.Notify.StaffDesc = "Address staff notifications are sent to."
}
