/******************************************************************************
 *
 *  Description :
 *
 *    Setup & initialization.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gorilla/handlers"
	jcr "github.com/tinode/jsonco"

	"github.com/chatter/relay/server/logs"
	"github.com/chatter/relay/server/store"

	// Backend database adapter
	_ "github.com/chatter/relay/server/db/mysql"
)

const (
	// idleSessionTimeout defines duration of being idle before the
	// websocket connection is closed.
	idleSessionTimeout = 55 * time.Second

	// defaultMaxMessageSize is the default maximum message size.
	defaultMaxMessageSize = 1 << 18 // 256KB

	// defaultSendQueueLimit is the default number of unsent messages
	// queued per session before the session is dropped.
	defaultSendQueueLimit = 128
)

// Build version number defined by the compiler:
//
//	-ldflags "-X main.buildstamp=value_to_assign_to_buildstamp"
var buildstamp = "undef"

var globals struct {
	// Channel registry and event router.
	hub *Hub
	// Registry of live client sessions.
	sessionStore *SessionStore
	// Typing state tracker.
	presence *PresenceTracker
	// Notification fan-out worker pool.
	fanout *Fanout

	// Buffered channel to report stats updates to the updater goroutine.
	statsUpdate chan *varUpdate

	// Salt used for signing API keys.
	apiKeySalt []byte
	// Maximum message size allowed from the clients.
	maxMessageSize int64
	// Maximum number of unsent messages queued per session.
	sendQueueLimit int
	// Strict-Transport-Security value, empty if unset.
	tlsStrictMaxAge string
}

type configType struct {
	// HTTP(S) address:port to listen on.
	Listen string `json:"listen"`
	// URL path for exposing runtime stats, relative to the root. Disabled if empty.
	ExpvarPath string `json:"expvar"`
	// Salt for signing API keys.
	APIKeySalt []byte `json:"api_key_salt"`
	// Maximum message size allowed from client, bytes.
	MaxMessageSize int `json:"max_message_size"`
	// Maximum number of unsent messages queued per session.
	SendQueueLimit int `json:"send_queue_limit"`
	// Time after the last typing signal before the user is reported as
	// no longer typing, milliseconds.
	TypingTimeout int `json:"typing_timeout"`
	// Number of notification fan-out workers.
	FanoutWorkers int `json:"fanout_workers"`
	// ID of this relay instance, used for unique ID generation.
	WorkerID int `json:"worker_id"`
	// Configuration of the data store.
	Store json.RawMessage `json:"store_config"`
	// TLS configuration.
	TLS *tlsConfig `json:"tls"`
}

func main() {
	executable, _ := os.Executable()

	logs.Info.Printf("Relay server (%s) started with processes: %d, build: %s",
		executable, runtime.GOMAXPROCS(runtime.NumCPU()), buildstamp)

	var configfile = flag.String("config", "./relay.conf", "Path to config file.")
	var listenOn = flag.String("listen", "", "Override address and port to listen on.")
	var expvarPath = flag.String("expvar", "", "Override the path where runtime stats are exposed.")
	var pprofURL = flag.String("pprof_url", "", "Debugging only! URL path for exposing profiling info. Disabled if not set.")
	flag.Parse()

	logs.Info.Printf("Using config from '%s'", *configfile)

	var config configType
	if file, err := os.Open(*configfile); err != nil {
		logs.Err.Fatal("Failed to read config file:", err)
	} else {
		jr := jcr.New(file)
		if err = json.NewDecoder(jr).Decode(&config); err != nil {
			switch jerr := err.(type) {
			case *json.UnmarshalTypeError:
				lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
				logs.Err.Fatalf("Unmarshall error in config file in %s at %d:%d (offset %d bytes): %s",
					jerr.Field, lnum, cnum, jerr.Offset, jerr.Error())
			case *json.SyntaxError:
				lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
				logs.Err.Fatalf("Syntax error in config file at %d:%d (offset %d bytes): %s",
					lnum, cnum, jerr.Offset, jerr.Error())
			default:
				logs.Err.Fatal("Failed to parse config file:", err)
			}
		}
		file.Close()
	}

	if *listenOn != "" {
		config.Listen = *listenOn
	}
	if *expvarPath != "" {
		config.ExpvarPath = *expvarPath
	}

	if err := store.Open(config.WorkerID, config.Store); err != nil {
		logs.Err.Fatal("Failed to connect to DB:", err)
	}
	logs.Info.Println("DB adapter:", store.GetAdapterName())
	defer func() {
		store.Close()
		logs.Info.Println("Closed database connection(s)")
		logs.Info.Println("All done, good bye")
	}()

	globals.apiKeySalt = config.APIKeySalt

	globals.maxMessageSize = int64(config.MaxMessageSize)
	if globals.maxMessageSize <= 0 {
		globals.maxMessageSize = defaultMaxMessageSize
	}
	globals.sendQueueLimit = config.SendQueueLimit
	if globals.sendQueueLimit <= 0 {
		globals.sendQueueLimit = defaultSendQueueLimit
	}

	globals.sessionStore = NewSessionStore()
	globals.presence = newPresenceTracker(time.Duration(config.TypingTimeout) * time.Millisecond)
	globals.fanout = newFanout(config.FanoutWorkers)
	globals.hub = newHub()

	mux := http.NewServeMux()

	// Initialize serving debug profiles (optional).
	servePprof(mux, *pprofURL)

	// Exposing values for statistics and monitoring.
	statsInit(mux, config.ExpvarPath)
	statsRegisterInt("Version")
	decVersion := base10Version(parseVersion(currentVersion))
	statsSet("Version", decVersion)

	statsRegisterInt("LiveChannels")
	statsRegisterInt("TotalChannels")
	statsRegisterInt("LiveSessions")
	statsRegisterInt("TotalSessions")
	statsRegisterInt("IncomingMessagesWebsockTotal")
	statsRegisterInt("OutgoingMessagesWebsockTotal")
	statsRegisterInt("PublishedEventsTotal")
	statsRegisterInt("DroppedEventsTotal")
	statsRegisterInt("SubscribeDeniedTotal")
	statsRegisterInt("NotificationsFannedOutTotal")
	statsRegisterInt("TypingEntries")

	// Streaming channels: websocket clients.
	mux.HandleFunc("/v0/channels", serveWebSocket)
	// Backend event injection and membership change notices.
	mux.HandleFunc("/v0/publish", servePublish)
	mux.HandleFunc("/v0/membership", serveMembership)
	mux.HandleFunc("/", serve404)

	if err := listenAndServe(config.Listen, handlers.CompressHandler(hstsHandler(mux)),
		config.TLS, signalHandler()); err != nil {
		logs.Err.Fatal(err)
	}
}
