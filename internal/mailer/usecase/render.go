package usecase

import (
	"strings"
	"text/template"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
)

// The layout is parsed with text/template, so view values are written
// unescaped. Callers sanitize user supplied text.
var mailLayout = template.Must(template.New("mail").Option("missingkey=zero").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.MailTitle}}</title>
</head>
<body style="margin:0;padding:0;background-color:#F5F7FA;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellspacing="0" cellpadding="0" border="0" style="background-color:#F5F7FA;padding:40px 0;">
<tr>
<td align="center">
<table role="presentation" width="600" cellspacing="0" cellpadding="0" border="0" style="max-width:600px;background-color:#FFFFFF;border-radius:8px;padding:40px;">
<tr>
<td align="center" style="padding-bottom:24px;">
<img src="" alt="{{.AppName}}" style="display:block;border:0;">
</td>
</tr>
<tr>
<td align="center">
<h1 style="margin:0 0 24px 0;font-size:36px;line-height:44px;color:#343B4E;">{{.MailTitle}}</h1>
</td>
</tr>
<tr>
<td style="font-size:18px;line-height:28px;color:#52556B;padding-bottom:16px;">{{.GreetingWord}} {{.User.Username}}</td>
</tr>
<tr>
<td style="font-size:18px;line-height:28px;color:#52556B;padding-bottom:32px;">{{.MailContent}}</td>
</tr>
<tr>
<td align="center" style="padding-bottom:40px;">
<a href="{{.Protocol}}://{{.URLAction}}" target="_blank" style="display:inline-block;padding:16px 32px;border-radius:4px;background-color:#{{.ButtonBackgroundColor}};color:#{{.ButtonColor}};font-size:20px;font-weight:bold;text-decoration:none;text-transform:uppercase;">{{.ButtonActionTitle}}</a>
</td>
</tr>
</table>
<table role="presentation" width="600" cellspacing="0" cellpadding="0" border="0" style="max-width:600px;">
<tr>
<td align="center" style="padding-top:24px;font-size:12px;line-height:18px;color:#838A9F;">{{.FooterAllRightsReserved}}&copy; {{.AllRightsReservedYears}} {{.AppName}}</td>
</tr>
<tr>
<td align="center" style="padding-top:8px;font-size:12px;line-height:18px;color:#838A9F;">
<a href="#" style="color:#838A9F;text-decoration:underline;">{{.ConditionUsingText}}</a>&nbsp;|&nbsp;<a href="#" style="color:#838A9F;text-decoration:underline;">{{.PoliticsText}}</a>
</td>
</tr>
</table>
</td>
</tr>
</table>
</body>
</html>
`))

// RenderTemplate renders the transactional mail layout for view. Identical
// views always produce identical output.
func RenderTemplate(view entity.TemplateView) string {
	var sb strings.Builder
	if err := mailLayout.Execute(&sb, view); err != nil {
		// only reachable if the layout references a field TemplateView lacks
		panic(err)
	}
	return sb.String()
}
