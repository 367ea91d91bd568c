package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/broadcast"
	"github.com/signalworks/ccdumper/domain"
)

// HandlerFunc computes one method's result. Handlers run concurrently for
// different requests, so they must not share unsynchronized mutable state.
type HandlerFunc func(ctx context.Context, symbol string) (interface{}, error)

// Server answers requests for the one role this process owns. Processes
// with other roles never construct a server for this topic, which is what
// makes the broadcast transport behave as unicast.
type Server struct {
	ch      *broadcast.Channel
	role    domain.Role
	methods map[string]HandlerFunc
}

func NewServer(ch *broadcast.Channel, role domain.Role) *Server {
	return &Server{
		ch:      ch,
		role:    role,
		methods: make(map[string]HandlerFunc),
	}
}

// Register adds a method to the dispatch table. Must be called before
// Start; the table is read-only afterwards.
func (s *Server) Register(method string, h HandlerFunc) {
	s.methods[method] = h
}

// Start subscribes the server on its request topic. Each request is served
// on its own goroutine so a slow method never blocks the next request.
func (s *Server) Start(ctx context.Context) {
	s.ch.Listen(s.role.RequestTopic(), func(data json.RawMessage) {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			log.WithField("role", s.role).
				Errorf("can't decode rpc request: %v", err)
			return
		}
		go s.serve(ctx, req)
	})
	log.WithField("role", s.role).
		WithField("methods", len(s.methods)).
		Info("rpc server listening")
}

func (s *Server) serve(ctx context.Context, req Request) {
	res := Response{RequestID: req.RequestID}

	h, ok := s.methods[req.MethodName]
	if !ok {
		res.Error = fmt.Sprintf("unknown method %s.%s", s.role, req.MethodName)
	} else if result, err := h(ctx, req.Symbol); err != nil {
		log.WithField("role", s.role).
			WithField("method", req.MethodName).
			WithField("symbol", req.Symbol).
			Errorf("rpc handler failed: %v", err)
		res.Error = err.Error()
	} else if payload, err := json.Marshal(result); err != nil {
		res.Error = fmt.Sprintf("can't marshal %s.%s result: %v", s.role, req.MethodName, err)
	} else {
		res.Result = payload
	}

	if err := s.ch.Broadcast(s.role.ResponseTopic(), res); err != nil {
		log.WithField("role", s.role).
			WithField("requestId", req.RequestID).
			Errorf("can't broadcast rpc response: %v", err)
	}
}
