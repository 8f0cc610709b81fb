package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-redis/redis"
	logging "github.com/inconshreveable/log15"
	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/net/http2"

	cmdcommon "github.com/laonet/laocoord/cmd/laocoord/common"
	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/consensus"
	"github.com/laonet/laocoord/lib/dispatcher"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/metrics"
	"github.com/laonet/laocoord/lib/network"
	"github.com/laonet/laocoord/lib/node/runner"
	"github.com/laonet/laocoord/lib/storage"
	"github.com/laonet/laocoord/lib/store"
	"github.com/laonet/laocoord/lib/witness"
)

const defaultLogLevel logging.Lvl = logging.LvlInfo

var (
	flagKPSecretSeed   string = common.GetENVValue("LAOCOORD_SECRET_SEED", "")
	flagRoster         string = common.GetENVValue("LAOCOORD_ROSTER", "")
	flagLogLevel       string = common.GetENVValue("LAOCOORD_LOG_LEVEL", defaultLogLevel.String())
	flagLogOutput      string = common.GetENVValue("LAOCOORD_LOG_OUTPUT", "")
	flagVerbose        bool   = common.GetENVValue("LAOCOORD_VERBOSE", "0") == "1"
	flagEndpointString string = common.GetENVValue(
		"LAOCOORD_ENDPOINT",
		fmt.Sprintf("http://0.0.0.0:%d", common.DefaultEndpointPort),
	)
	flagStorageConfigString string
	flagTLSCertFile         string = common.GetENVValue("LAOCOORD_TLS_CERT", "laocoord.crt")
	flagTLSKeyFile          string = common.GetENVValue("LAOCOORD_TLS_KEY", "laocoord.key")
	flagRateLimit           string = common.GetENVValue("LAOCOORD_RATE_LIMIT", "")
	flagRedis               string = common.GetENVValue("LAOCOORD_REDIS", "")
	flagRedisExpiration     string = common.GetENVValue("LAOCOORD_REDIS_EXPIRATION", "0s")
	flagNTPServer           string = common.GetENVValue("LAOCOORD_NTP_SERVER", "")

	flagWorkerPoolSize     string = common.GetENVValue("LAOCOORD_WORKER_POOL_SIZE", strconv.Itoa(common.DefaultWorkerPoolSize))
	flagDedupCacheSize     string = common.GetENVValue("LAOCOORD_DEDUP_CACHE_SIZE", strconv.Itoa(common.DefaultDedupCacheSize))
	flagCatchupBufferLimit string = common.GetENVValue("LAOCOORD_CATCHUP_BUFFER_LIMIT", strconv.Itoa(common.DefaultCatchupBufferLimit))
	flagWitnessThreshold   string = common.GetENVValue("LAOCOORD_WITNESS_THRESHOLD", common.DefaultWitnessThreshold)
	flagAcceptTimeout      string = common.GetENVValue("LAOCOORD_ACCEPT_TIMEOUT", common.DefaultAcceptTimeout.String())
	flagPublishTimeout     string = common.GetENVValue("LAOCOORD_PUBLISH_TIMEOUT", common.DefaultPublishTimeout.String())
)

var (
	nodeCmd *cobra.Command

	signer          *keypair.KeypairSigner
	registry        *lao.Registry
	nodeEndpoint    *common.Endpoint
	storageConfig   *storage.Config
	redisOptions    *redis.Options
	redisExpiration time.Duration
	conf            common.Config
	ntpClock        *common.NTPClock
	logLevel        logging.Lvl
	log             logging.Logger
)

func init() {
	var err error

	nodeCmd = &cobra.Command{
		Use:   "node",
		Short: "Run laocoord node",
		Run: func(c *cobra.Command, args []string) {
			parseFlagsNode()

			runNode()
		},
	}

	var currentDirectory string
	if currentDirectory, err = os.Getwd(); err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, "--storage", err)
	}
	if currentDirectory, err = filepath.Abs(currentDirectory); err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, "--storage", err)
	}
	flagStorageConfigString = common.GetENVValue("LAOCOORD_STORAGE", fmt.Sprintf("file://%s/db", currentDirectory))

	nodeCmd.Flags().StringVar(&flagKPSecretSeed, "secret-seed", flagKPSecretSeed, "secret seed of this node")
	nodeCmd.Flags().StringVar(&flagRoster, "roster", flagRoster, "roster file of the organizations")
	nodeCmd.Flags().StringVar(&flagLogLevel, "log-level", flagLogLevel, "log level, {crit, error, warn, info, debug}")
	nodeCmd.Flags().StringVar(&flagLogOutput, "log-output", flagLogOutput, "set log output file")
	nodeCmd.Flags().BoolVar(&flagVerbose, "verbose", flagVerbose, "verbose")
	nodeCmd.Flags().StringVar(&flagEndpointString, "endpoint", flagEndpointString, "endpoint uri to listen on ('http://0.0.0.0:12346')")
	nodeCmd.Flags().StringVar(&flagStorageConfigString, "storage", flagStorageConfigString, "storage uri, 'file:///path' or 'memory://'")
	nodeCmd.Flags().StringVar(&flagTLSCertFile, "tls-cert", flagTLSCertFile, "tls certificate file for https endpoint")
	nodeCmd.Flags().StringVar(&flagTLSKeyFile, "tls-key", flagTLSKeyFile, "tls key file for https endpoint")
	nodeCmd.Flags().StringVar(&flagRateLimit, "rate-limit", flagRateLimit, "rate limit of the api, like '100-S'")
	nodeCmd.Flags().StringVar(&flagRedis, "redis", flagRedis, "redis url of the shared message store, like 'redis://localhost:6379/0'")
	nodeCmd.Flags().StringVar(&flagRedisExpiration, "redis-expiration", flagRedisExpiration, "expiration of the messages in redis; 0 keeps them")
	nodeCmd.Flags().StringVar(&flagNTPServer, "ntp-server", flagNTPServer, "ntp server the clock is synchronized with")
	nodeCmd.Flags().StringVar(&flagWorkerPoolSize, "worker-pool-size", flagWorkerPoolSize, "number of the dispatcher workers")
	nodeCmd.Flags().StringVar(&flagDedupCacheSize, "dedup-cache-size", flagDedupCacheSize, "number of the message ids cached in memory")
	nodeCmd.Flags().StringVar(&flagCatchupBufferLimit, "catchup-buffer-limit", flagCatchupBufferLimit, "live messages buffered while a channel is caught up")
	nodeCmd.Flags().StringVar(&flagWitnessThreshold, "witness-threshold", flagWitnessThreshold, "witness threshold, {majority, <percent>%, <count>}")
	nodeCmd.Flags().StringVar(&flagAcceptTimeout, "accept-timeout", flagAcceptTimeout, "timeout of the consensus instances")
	nodeCmd.Flags().StringVar(&flagPublishTimeout, "publish-timeout", flagPublishTimeout, "timeout of publishing a message")

	nodeCmd.MarkFlagRequired("secret-seed")
	nodeCmd.MarkFlagRequired("roster")

	rootCmd.AddCommand(nodeCmd)
}

func parsePositiveInt(flagName, s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, flagName, err)
	}
	if i < 1 {
		cmdcommon.PrintFlagsError(nodeCmd, flagName, fmt.Errorf("must be greater than 0"))
	}

	return i
}

func parseDuration(flagName, s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, flagName, err)
	}
	if d < 0 {
		cmdcommon.PrintFlagsError(nodeCmd, flagName, fmt.Errorf("must not be negative"))
	}

	return d
}

func parseFlagsNode() {
	var err error

	if signer, err = keypair.NewSignerFromSeed(flagKPSecretSeed); err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, "--secret-seed", err)
	}

	if registry, err = lao.LoadRegistryFromFile(flagRoster); err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, "--roster", err)
	}

	if nodeEndpoint, err = common.ParseEndpoint(flagEndpointString); err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, "--endpoint", err)
	}

	queries := nodeEndpoint.Query()
	if nodeEndpoint.Scheme == "https" {
		if _, err = os.Stat(flagTLSCertFile); os.IsNotExist(err) {
			cmdcommon.PrintFlagsError(nodeCmd, "--tls-cert", err)
		}
		if _, err = os.Stat(flagTLSKeyFile); os.IsNotExist(err) {
			cmdcommon.PrintFlagsError(nodeCmd, "--tls-key", err)
		}
		queries.Set("TLSCertFile", flagTLSCertFile)
		queries.Set("TLSKeyFile", flagTLSKeyFile)
	}
	queries.Set("IdleTimeout", common.GetURLQuery(queries, "IdleTimeout", "3s"))
	if len(flagRateLimit) > 0 {
		queries.Set("RateLimit", flagRateLimit)
	}
	nodeEndpoint.RawQuery = queries.Encode()
	flagEndpointString = nodeEndpoint.String()

	if storageConfig, err = storage.NewConfigFromString(flagStorageConfigString); err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, "--storage", err)
	}

	if len(flagRedis) > 0 {
		if redisOptions, err = redis.ParseURL(flagRedis); err != nil {
			cmdcommon.PrintFlagsError(nodeCmd, "--redis", err)
		}
		redisExpiration = parseDuration("--redis-expiration", flagRedisExpiration)
	}

	if len(flagNTPServer) > 0 {
		ntpClock = common.NewNTPClock(flagNTPServer)
	}

	conf = common.NewConfig()
	conf.WorkerPoolSize = parsePositiveInt("--worker-pool-size", flagWorkerPoolSize)
	conf.DedupCacheSize = parsePositiveInt("--dedup-cache-size", flagDedupCacheSize)
	conf.CatchupBufferLimit = parsePositiveInt("--catchup-buffer-limit", flagCatchupBufferLimit)
	conf.AcceptTimeout = parseDuration("--accept-timeout", flagAcceptTimeout)
	conf.PublishTimeout = parseDuration("--publish-timeout", flagPublishTimeout)

	if _, err = witness.ParsePolicy(flagWitnessThreshold); err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, "--witness-threshold", err)
	}
	conf.WitnessThreshold = flagWitnessThreshold

	if logLevel, err = logging.LvlFromString(flagLogLevel); err != nil {
		cmdcommon.PrintFlagsError(nodeCmd, "--log-level", err)
	}

	logHandler := common.NewLogHandler(false)
	if len(flagLogOutput) < 1 {
		flagLogOutput = "<stdout>"
	} else {
		if logHandler, err = logging.FileHandler(flagLogOutput, common.JsonFormatEx(false, true)); err != nil {
			cmdcommon.PrintFlagsError(nodeCmd, "--log-output", err)
		}
	}

	log = logging.New("module", "main")
	log.SetHandler(logging.LvlFilterHandler(logLevel, logHandler))
	common.SetLogging(logLevel, logHandler)
	network.SetLogging(logLevel, logHandler)
	dispatcher.SetLogging(logLevel, logHandler)
	consensus.SetLogging(logLevel, logHandler)
	witness.SetLogging(logLevel, logHandler)
	runner.SetLogging(logLevel, logHandler)

	log.Info("Starting laocoord")

	// print flags
	parsedFlags := []interface{}{}
	nodeCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "secret-seed" {
			return
		}
		parsedFlags = append(parsedFlags, "\n\t"+f.Name, f.Value.String())
	})
	for _, o := range registry.All() {
		role, _ := o.Role(signer.PublicKey())
		parsedFlags = append(
			parsedFlags,
			"\n\tlao",
			fmt.Sprintf("id=%s name=%s witnesses=%d role=%s", o.ID, o.Name, len(o.Witnesses), role),
		)
	}

	log.Debug("parsed flags:", parsedFlags...)

	if flagVerbose {
		http2.VerboseLogs = true
	}
}

func runNode() {
	metrics.InitPrometheusMetrics()
	metrics.SetVersion(signer.PublicKey())

	st := &storage.LevelDBBackend{}
	if err := st.Init(storageConfig); err != nil {
		log.Crit("failed to initialize storage", "error", err)

		os.Exit(1)
	}
	defer st.Close()

	var messages store.MessageStore
	if redisOptions != nil {
		rs := store.NewRedisMessageStore(redisOptions, redisExpiration)
		if err := rs.Ping(); err != nil {
			log.Crit("failed to connect redis", "error", err)

			os.Exit(1)
		}
		defer rs.Close()
		messages = rs
	} else {
		ls, err := store.NewLevelDBMessageStore(st, conf.DedupCacheSize)
		if err != nil {
			log.Crit("failed to initialize message store", "error", err)

			os.Exit(1)
		}
		messages = ls
	}

	httpConfig, err := network.NewHTTPServerConfigFromEndpoint(signer.PublicKey(), nodeEndpoint)
	if err != nil {
		log.Crit("failed to create http server config", "error", err)

		os.Exit(1)
	}
	server := network.NewHTTPServer(httpConfig)

	// the transport of the nodes in this process
	var transport *channel.MemoryNetwork
	transport = transport.NewMemoryNetwork()

	nr, err := runner.NewNodeRunner(signer, registry, transport, st, messages, server, conf)
	if err != nil {
		log.Crit("failed to create node", "error", err)

		os.Exit(1)
	}

	if ntpClock != nil {
		if err := ntpClock.Sync(); err != nil {
			log.Warn("clock is not synchronized", "error", err)
		}
		nr.SetClock(ntpClock)
	}

	// Execution group.
	var g run.Group
	{
		g.Add(func() error {
			return transport.Start()
		}, func(error) {
			transport.Stop()
		})
	}
	{
		g.Add(func() error {
			if err := nr.Start(); err != nil {
				log.Crit("failed to start node", "error", err)
				return err
			}
			return nil
		}, func(error) {
			nr.Stop()
		})
	}
	{
		g.Add(func() error {
			return server.Start()
		}, func(error) {
			nr.Stop()
		})
	}
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			return cmdcommon.Interrupt(cancel)
		}, func(error) {
			close(cancel)
		})
	}

	if err := g.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
