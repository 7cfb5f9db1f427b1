package alerts

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// timeLayout matches the "%Y-%m-%d %H:%M:%S %Z" rendering used in the emails.
const timeLayout = "2006-01-02 15:04:05 MST"

const siteName = "PMR B5"

var (
	delayTmpl = template.Must(template.New("delay").Parse(`
<h1>{{.Title}}</h1>
<p>The electricity status hasn't been updated for {{printf "%.1f" .Hours}} hours.</p>
<p>Last update was at: {{.LastUpdated}}</p>
<p>This might indicate:</p>
<ul>
    <li>The Raspberry Pi has lost connection</li>
    <li>The monitoring service is not running</li>
    <li>There might be an issue with the sensors</li>
</ul>
<p>Please check the Raspberry Pi connection and the monitoring service.</p>
`))

	outageTmpl = template.Must(template.New("outage").Parse(`
<h1>{{.Title}}</h1>
<p>The electricity is currently DOWN in {{.Site}}.</p>
<p>Last update was at: {{.LastUpdated}}</p>
<p>Please be aware that:</p>
<ul>
    <li>The building might be experiencing a power outage</li>
    <li>Backup power systems (if any) might be in use</li>
    <li>Some services might be affected</li>
</ul>
<p>Please take necessary precautions and monitor the situation.</p>
`))

	testTmpl = template.Must(template.New("test").Parse(`
<h1>{{.Title}}</h1>
<p>Hello! This is a test email sent from powerwatch.</p>
<p>If you're receiving this email, it means:</p>
<ul>
    <li>Your Resend API key is working correctly</li>
    <li>The email sending functionality is properly configured</li>
</ul>
<p>Time sent: {{.SentAt}}</p>
`))
)

type templateData struct {
	Title       string
	Site        string
	Hours       float64
	LastUpdated string
	SentAt      string
}

// DelayAlert renders the stale-update warning. Times are shown in loc.
func DelayAlert(status string, lastUpdated time.Time, ageMinutes float64, loc *time.Location, recipients []string) (Alert, error) {
	subject := siteName + " - Electricity Status Update Delay Warning"
	html, err := render(delayTmpl, templateData{
		Title:       subject,
		Hours:       ageMinutes / 60,
		LastUpdated: lastUpdated.In(loc).Format(timeLayout),
	})
	if err != nil {
		return Alert{}, err
	}
	return Alert{
		Kind:        KindDelay,
		Subject:     subject,
		HTML:        html,
		Message:     fmt.Sprintf("Electricity status has not been updated for %.1f minutes", ageMinutes),
		Recipients:  recipients,
		Status:      status,
		LastUpdated: lastUpdated,
		AgeMinutes:  ageMinutes,
	}, nil
}

// OutageAlert renders the power-down warning. Times are shown in loc.
func OutageAlert(status string, lastUpdated time.Time, ageMinutes float64, loc *time.Location, recipients []string) (Alert, error) {
	subject := siteName + " - Electricity is DOWN"
	html, err := render(outageTmpl, templateData{
		Title:       subject,
		Site:        siteName,
		LastUpdated: lastUpdated.In(loc).Format(timeLayout),
	})
	if err != nil {
		return Alert{}, err
	}
	return Alert{
		Kind:        KindOutage,
		Subject:     subject,
		HTML:        html,
		Message:     fmt.Sprintf("Electricity is DOWN (reported %.1f minutes ago)", ageMinutes),
		Recipients:  recipients,
		Status:      status,
		LastUpdated: lastUpdated,
		AgeMinutes:  ageMinutes,
	}, nil
}

// TestAlert renders a delivery check message.
func TestAlert(now time.Time, loc *time.Location, recipients []string) (Alert, error) {
	subject := "Test Email from " + siteName
	html, err := render(testTmpl, templateData{
		Title:  subject,
		SentAt: now.In(loc).Format(timeLayout),
	})
	if err != nil {
		return Alert{}, err
	}
	return Alert{
		Kind:       KindTest,
		Subject:    subject,
		HTML:       html,
		Message:    "powerwatch test notification",
		Recipients: recipients,
	}, nil
}

// LoadLocation resolves name, falling back to WIB (UTC+7) for Asia/Jakarta
// when the host has no zoneinfo database.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == "Asia/Jakarta" {
		return time.FixedZone("WIB", 7*60*60), nil
	}
	return nil, fmt.Errorf("load timezone %q: %w", name, err)
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
