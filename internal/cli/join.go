package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/carelinkhq/telecall/internal/config"
	"github.com/carelinkhq/telecall/internal/media"
	"github.com/carelinkhq/telecall/internal/protocol"
	"github.com/carelinkhq/telecall/internal/rtc"
	"github.com/carelinkhq/telecall/internal/session"
	"github.com/carelinkhq/telecall/internal/sigclient"
	"github.com/carelinkhq/telecall/internal/ui"
)

var (
	flagRelayURL string
	flagAPIURL   string
	flagToken    string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string

	flagUserID string
	flagName   string
	flagEmail  string
	flagRole   string
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join the consultation room of a booked appointment",
	Long: `Join a consultation room and negotiate the call through the relay.

In-call commands:
  /start     start the call once the other participant is present
  /mic       toggle microphone
  /cam       toggle camera
  /end       end the call (a doctor ends it for everyone)
  /rejoin    rejoin after the call ended
  /quit      leave and exit
  anything else is sent as a chat message`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin(args[0])
	},
}

func runJoin(roomID string) error {
	cfg, err := config.Load(config.Options{
		RelayURL:   flagRelayURL,
		APIBaseURL: flagAPIURL,
		Token:      flagToken,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
	})
	if err != nil {
		return err
	}

	identity := protocol.Identity{
		UserID: flagUserID,
		Email:  flagEmail,
		Name:   flagName,
		Role:   protocol.Role(flagRole),
	}
	if err := protocol.Validate(&identity); err != nil {
		return fmt.Errorf("invalid identity: --user and --role (doctor|patient) are required")
	}

	logger := slog.Default()

	client := sigclient.NewClient(cfg.RelayURL)
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Close()

	turnUser, turnPass := cfg.GetTURNCredentials()
	factory := rtc.NewPionFactory(rtc.ICEConfig{
		STUNServers: cfg.GetSTUNServers(),
		TURNServers: cfg.GetTURNServers(),
		TURNUser:    turnUser,
		TURNPass:    turnPass,
	})

	var sess *session.Session
	manager, err := rtc.NewManager(factory, rtc.Callbacks{
		OnLocalCandidate: func(c webrtc.ICECandidateInit) {
			if sess != nil {
				sess.OnLocalCandidate(c)
			}
		},
		OnNegotiationOffer: func(offer webrtc.SessionDescription) {
			if sess != nil {
				sess.OnNegotiationOffer(offer)
			}
		},
		OnConnectionState: func(state webrtc.PeerConnectionState) {
			if sess != nil {
				sess.OnConnectionState(state)
			}
		},
		OnFailure: func(err error) {
			if sess != nil {
				sess.OnConnectionFailed(err)
			}
		},
	}, logger)
	if err != nil {
		return err
	}

	sess = session.New(client, manager, media.NewSynthetic(), roomID, identity, logger)
	defer sess.Close()

	dispatcher := sigclient.NewDispatcher(client, sess, logger)
	go dispatcher.Run()

	go printEvents(sess)

	if err := sess.Join(); err != nil {
		return err
	}

	ui.PrintTitle("CareLink consultation — room " + roomID)
	ui.PrintInfo("Waiting for the other participant. Type /start to call once they arrive.")

	return commandLoop(sess)
}

// printEvents renders session notifications until the event stream closes.
func printEvents(sess *session.Session) {
	for ev := range sess.Events() {
		renderEvent(ev)
	}
}

func renderEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventStateChanged:
		ui.PrintStatus("session: " + ev.State.String())
	case session.EventPeerJoined:
		name := ev.Peer.Identity.DisplayName()
		if name == "" {
			name = "participant"
		}
		ui.PrintSuccess(name + " joined the room")
	case session.EventPeerLeft:
		ui.PrintWarning("the other participant left")
	case session.EventAccessDenied:
		ui.PrintError(ev.Text)
	case session.EventChatReceived:
		ui.PrintChat(ev.Chat.SenderName, ev.Chat.Message, ev.Chat.Timestamp)
	case session.EventMediaUpdated:
		state := "off"
		if ev.Media.Enabled {
			state = "on"
		}
		ui.PrintInfo(fmt.Sprintf("peer turned %s %s", ev.Media.Kind, state))
	case session.EventPeerBusy:
		ui.PrintWarning("the other participant is busy in another call")
	case session.EventConnection:
		ui.PrintInfo("connection: " + ev.Text)
	case session.EventFailure:
		ui.PrintError(ev.Err.Error())
	}
}

func commandLoop(sess *session.Session) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		sess.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch line {
		case "/start":
			err = sess.StartCall()
		case "/mic":
			err = sess.ToggleMedia(protocol.MediaAudio)
		case "/cam":
			err = sess.ToggleMedia(protocol.MediaVideo)
		case "/end":
			err = sess.End()
		case "/rejoin":
			err = sess.Rejoin()
		case "/quit":
			sess.End()
			return nil
		default:
			err = sess.SendChatMessage(line)
		}

		if err != nil {
			ui.PrintError(err.Error())
		}
	}
	return scanner.Err()
}

func init() {
	joinCmd.Flags().StringVar(&flagRelayURL, "relay", "", "signaling relay websocket URL")
	joinCmd.Flags().StringVar(&flagAPIURL, "api", "", "booking API base URL")
	joinCmd.Flags().StringVar(&flagToken, "token", "", "CareLink session token")
	joinCmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	joinCmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server host")
	joinCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")

	joinCmd.Flags().StringVar(&flagUserID, "user", "", "CareLink user ID")
	joinCmd.Flags().StringVar(&flagName, "name", "", "display name")
	joinCmd.Flags().StringVar(&flagEmail, "email", "", "account email")
	joinCmd.Flags().StringVar(&flagRole, "role", "", "appointment role: doctor or patient")

	rootCmd.AddCommand(joinCmd)
}
