package core

import "github.com/dkeye/Meetup/internal/domain"

// clientSession implements ClientSession by pairing identity + transport.
type clientSession struct {
	user  domain.Session
	token string
	conn  SignalConnection
}

func NewClientSession(user domain.Session, token string, conn SignalConnection) ClientSession {
	return &clientSession{user: user, token: token, conn: conn}
}

func (s *clientSession) User() domain.Session     { return s.user }
func (s *clientSession) Token() string            { return s.token }
func (s *clientSession) Signal() SignalConnection { return s.conn }
