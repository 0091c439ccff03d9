package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalPaths(t *testing.T) {
	stack := []byte(`goroutine 1 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/gomailer/internal/mailer/usecase.(*Usecase).SendMail(...)
	/src/gomailer/internal/mailer/usecase/send_mail.go:42 +0x1a
main.main()
	/src/gomailer/main.go:12 +0x25
`)

	got := InternalPaths(stack)

	assert.Equal(t, []string{"internal/mailer/usecase/send_mail.go:42"}, got)
}

func TestInternalPaths_NoInternalFrames(t *testing.T) {
	assert.Empty(t, InternalPaths([]byte("main.main()\n\t/src/main.go:3 +0x1\n")))
}
