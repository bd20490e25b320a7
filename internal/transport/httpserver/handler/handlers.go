package handler

import (
	auditdomain "osbb-app-go/internal/domain/audit"
	votingdomain "osbb-app-go/internal/domain/voting"
	"osbb-app-go/pkg/logger"
)

type Handlers struct {
	Votings *votingdomain.Service
	Audit   *auditdomain.Service
	log     logger.Logger
}

func New(votings *votingdomain.Service, audit *auditdomain.Service, log logger.Logger) *Handlers {
	return &Handlers{
		Votings: votings,
		Audit:   audit,
		log:     log,
	}
}
