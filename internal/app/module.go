package app

import (
	"fmt"

	"github.com/shandysiswandi/gomailer/internal/mailer"
)

func (a *App) initModules() error {
	err := mailer.New(mailer.Dependency{
		Ctx:         a.ctx,
		Mail:        a.mail,
		Messaging:   a.messaging,
		Goroutine:   a.goroutine,
		Router:      a.router,
		Config:      a.config,
		Instrument:  a.ins,
		UID:         a.uid,
		UUID:        a.uuid,
		Clock:       a.clock,
		Validator:   a.validator,
		DBConn:      a.dbConn,
		Idempotency: a.idemp,
		Storage:     a.storage,
		Registerer:  a.registry,
	})
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	return nil
}
