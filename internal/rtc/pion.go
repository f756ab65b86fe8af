package rtc

import (
	"github.com/pion/webrtc/v4"
)

// ICEConfig names the STUN/TURN servers handed to the browser engine. TURN
// relaying itself is external infrastructure; only the addresses live here.
type ICEConfig struct {
	STUNServers []string
	TURNServers []string
	TURNUser    string
	TURNPass    string
}

// NewPionFactory returns a ConnFactory producing real pion peer connections
// configured for a two-party consultation call.
func NewPionFactory(cfg ICEConfig) ConnFactory {
	return func() (PeerConn, error) {
		var servers []webrtc.ICEServer
		if len(cfg.STUNServers) > 0 {
			servers = append(servers, webrtc.ICEServer{URLs: cfg.STUNServers})
		}
		if len(cfg.TURNServers) > 0 {
			servers = append(servers, webrtc.ICEServer{
				URLs:       cfg.TURNServers,
				Username:   cfg.TURNUser,
				Credential: cfg.TURNPass,
			})
		}

		return webrtc.NewPeerConnection(webrtc.Configuration{
			ICEServers:    servers,
			BundlePolicy:  webrtc.BundlePolicyMaxBundle,
			RTCPMuxPolicy: webrtc.RTCPMuxPolicyRequire,
		})
	}
}
