// Package admin serves the operator console over websocket. Connections
// speak the JSON protocol from internal/protocol; every command that touches
// live shop state is marshalled onto the logic thread.
package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shopcraft.gg/internal/persistence/indexdb"
	"shopcraft.gg/internal/plugin"
	"shopcraft.gg/internal/protocol"
)

type Server struct {
	plugin *plugin.Plugin
	audit  *indexdb.SQLiteAudit // optional
	token  string
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(p *plugin.Plugin, audit *indexdb.SQLiteAudit, token string, logger *log.Logger) *Server {
	s := &Server{
		plugin: p,
		audit:  audit,
		token:  token,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		s.log.Printf("console connected: %s", sess.id)
		defer s.log.Printf("console disconnected: %s", sess.id)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.Type != protocol.TypeCommand {
				continue
			}
			var cmd protocol.CommandMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				continue
			}
			if cmd.ProtocolVersion != protocol.Version {
				continue
			}
			s.dispatch(sess, cmd)
		}

		// Any confirmation left pending by this console dies with it.
		s.onLogic(func() { s.plugin.Confirmations.Clear(sess.sender.key) })
	}
}

type session struct {
	id     string
	out    chan []byte
	sender *consoleSender
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}
	if s.token != "" {
		got := ""
		if hello.Auth != nil {
			got = strings.TrimSpace(hello.Auth.Token)
		}
		if got != s.token {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad token"), time.Now().Add(time.Second))
			return nil
		}
	}

	out := make(chan []byte, 16)
	sess := &session{id: uuid.NewString(), out: out}
	sess.sender = &consoleSender{key: "console:" + sess.id, out: out}

	var count int
	s.onLogic(func() { count = s.plugin.Registry.Count() })

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		ServerName:      "shopcraft",
		ShopCount:       count,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return sess
}

func (s *Server) dispatch(sess *session, cmd protocol.CommandMsg) {
	reply := protocol.ReplyMsg{
		Type:            protocol.TypeReply,
		ProtocolVersion: protocol.Version,
		ID:              cmd.ID,
		OK:              true,
	}

	switch cmd.Command {
	case protocol.CmdList:
		s.onLogic(func() {
			for _, sk := range s.plugin.Registry.All() {
				sum := protocol.ShopSummary{
					ID:       sk.ID(),
					UUID:     sk.UUID().String(),
					ShopType: string(sk.Type()),
					Object:   string(sk.ObjectType()),
					Name:     sk.Name(),
					Active:   sk.Active(),
				}
				if world, pos, ok := sk.Location(); ok {
					sum.World = world
					sum.Pos = [3]int{pos.X, pos.Y, pos.Z}
				}
				if ps := sk.PlayerShop(); ps != nil {
					sum.OwnerUUID = ps.OwnerID.String()
					sum.OwnerName = ps.OwnerName
				}
				reply.Shops = append(reply.Shops, sum)
			}
		})

	case protocol.CmdStats:
		s.onLogic(func() {
			stats := &protocol.StatsPayload{
				Shops:          s.plugin.Registry.Count(),
				UISessions:     s.plugin.UI.SessionCount(),
				TrackedMobs:    s.plugin.AI.EntityCount(),
				ActiveAIChunks: s.plugin.AI.ActiveAIChunks(),
				AIAvgMillis:    s.plugin.AI.TotalTimings().AverageMillis(),
				SaveFlushes:    uint64(s.plugin.Store.Flushes()),
				Dirty:          s.plugin.Store.Dirty(),
			}
			for _, sk := range s.plugin.Registry.All() {
				if sk.Active() {
					stats.ActiveShops++
				}
			}
			reply.Stats = stats
		})

	case protocol.CmdRemove:
		if strings.EqualFold(cmd.Target, "own") {
			reply.OK = false
			reply.Error = "console has no own shops"
			break
		}
		s.onLogic(func() {
			sess.sender.begin(cmd.ID)
			s.plugin.Remove.Execute(sess.sender, cmd.Target)
			reply.Messages = sess.sender.finish()
		})

	case protocol.CmdConfirm:
		s.onLogic(func() {
			sess.sender.begin(cmd.ID)
			s.plugin.Remove.Confirm(sess.sender)
			reply.Messages = sess.sender.finish()
		})

	case protocol.CmdSave:
		var err error
		s.onLogic(func() { err = s.plugin.Store.SaveNow() })
		if err != nil {
			reply.OK = false
			reply.Error = err.Error()
		}

	case protocol.CmdAudit:
		if s.audit == nil {
			reply.OK = false
			reply.Error = "audit index not configured"
			break
		}
		limit := cmd.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		entries, err := s.audit.Recent(ctx, limit)
		cancel()
		if err != nil {
			reply.OK = false
			reply.Error = err.Error()
			break
		}
		for _, e := range entries {
			reply.Audit = append(reply.Audit, protocol.AuditEntry{
				Seq:      e.Seq,
				Tick:     e.Tick,
				Kind:     e.Kind,
				ShopID:   e.ShopID,
				ShopUUID: e.ShopUUID,
				ShopType: e.ShopType,
				Detail:   e.Detail,
			})
		}

	default:
		reply.OK = false
		reply.Error = "unknown command"
	}

	sess.push(reply)
}

// onLogic runs fn on the logic thread and waits for it.
func (s *Server) onLogic(fn func()) {
	done := make(chan struct{})
	s.plugin.Host().Scheduler().RunOnLogicThread(func() {
		fn()
		close(done)
	})
	<-done
}

func (sess *session) push(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	default:
		// Console is not keeping up; drop rather than stall the caller.
	}
}

// consoleSender adapts a console session to the command Sender interface.
// All methods run on the logic thread. Replies during a dispatched command
// are collected into the command's REPLY; later replies (confirmation
// expiry) are pushed as standalone messages.
type consoleSender struct {
	key string
	out chan []byte

	collecting bool
	cmdID      string
	collected  []string
}

func (c *consoleSender) Key() string { return c.key }
func (c *consoleSender) Name() string { return "console" }
func (c *consoleSender) HasPermission(string) bool { return true }
func (c *consoleSender) PlayerID() (uuid.UUID, bool) { return uuid.UUID{}, false }

func (c *consoleSender) begin(cmdID string) {
	c.collecting = true
	c.cmdID = cmdID
	c.collected = nil
}

func (c *consoleSender) finish() []string {
	c.collecting = false
	msgs := c.collected
	c.collected = nil
	return msgs
}

func (c *consoleSender) Reply(msg string) {
	if c.collecting {
		c.collected = append(c.collected, msg)
		return
	}
	b, err := json.Marshal(protocol.ReplyMsg{
		Type:            protocol.TypeReply,
		ProtocolVersion: protocol.Version,
		ID:              c.cmdID,
		OK:              true,
		Messages:        []string{msg},
	})
	if err != nil {
		return
	}
	select {
	case c.out <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
