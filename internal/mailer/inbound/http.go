package inbound

import (
	"github.com/shandysiswandi/gomailer/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc, maxUploadBytes int64) {
	end := &HTTPEndpoint{uc: uc, maxUploadBytes: maxUploadBytes}

	r.POST("/api/v1/mail/send", end.SendMail)
	r.POST("/api/v1/mail/send/template", end.SendMailWithTemplate)
	r.POST("/api/v1/mail/send/group", end.SendMailToGroup)
	r.POST("/api/v1/mail/send/group/template", end.SendMailToGroupWithTemplate)

	r.POST("/api/v1/mail/queues/:queue/jobs", end.Enqueue)
	r.GET("/api/v1/mail/deliveries/:job_id", end.GetDeliveries)

	r.POST("/api/v1/mail/attachments", end.UploadAttachment)
}
