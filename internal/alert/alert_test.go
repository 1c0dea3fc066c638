package alert_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/alert"
)

type fakeRepo struct {
	m   *airquality.RawMeasurement
	err error
	got []airquality.Location
}

func (r *fakeRepo) Fetch(_ context.Context, loc airquality.Location) (*airquality.RawMeasurement, error) {
	r.got = append(r.got, loc)
	if r.err != nil {
		return nil, r.err
	}
	return r.m, nil
}

type sentMessage struct {
	channelID string
	text      string
}

type fakeGateway struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (g *fakeGateway) Send(_ context.Context, channelID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, sentMessage{channelID: channelID, text: text})
	return nil
}

func TestCheckAirQuality_Execute(t *testing.T) {
	repo := &fakeRepo{m: &airquality.RawMeasurement{City: "X", State: "Y", AQI: 75, Temperature: 30, Humidity: 60}}
	check := alert.NewCheckAirQuality(repo, "Thailand")

	input := airquality.NewCityLocation("x", "", "Thailand")
	data, err := check.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 75, data.AQI)
	assert.Equal(t, 23, data.PM25)
	assert.Equal(t, 30, data.Temperature)
	assert.Equal(t, 60, data.Humidity)
	assert.Equal(t, airquality.CityQuery{City: "X", State: "Y", Country: "Thailand"}, data.Location.Query)
	require.Len(t, repo.got, 1)
	assert.Equal(t, input, repo.got[0])
}

func TestCheckAirQuality_CoordinatesResolveToCity(t *testing.T) {
	repo := &fakeRepo{m: &airquality.RawMeasurement{City: "Phan Thong", State: "Chon Buri", AQI: 40}}
	check := alert.NewCheckAirQuality(repo, "Thailand")

	loc, err := airquality.NewCoordinatesLocation(13.46, 101.09)
	require.NoError(t, err)

	data, err := check.Execute(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, "Phan Thong, Chon Buri", data.Location.DisplayName())
}

func TestCheckAirQuality_PropagatesLookupError(t *testing.T) {
	lookupErr := &airquality.LookupError{Location: "Nowhere", Status: "city_not_found"}
	check := alert.NewCheckAirQuality(&fakeRepo{err: lookupErr}, "Thailand")

	_, err := check.Execute(context.Background(), airquality.NewCityLocation("Nowhere", "", ""))
	assert.Same(t, lookupErr, err)
}

func TestCheckAirQuality_RejectsNegativeAQI(t *testing.T) {
	check := alert.NewCheckAirQuality(&fakeRepo{m: &airquality.RawMeasurement{City: "X", AQI: -1}}, "Thailand")

	_, err := check.Execute(context.Background(), airquality.NewCityLocation("X", "", ""))
	assert.ErrorIs(t, err, airquality.ErrNegativeAQI)
}

func testReading(t *testing.T, city, state string, aqi int) *airquality.AirQualityData {
	t.Helper()
	data, err := airquality.NewAirQualityData(airquality.NewCityLocation(city, state, "Thailand"), aqi, 31, 72)
	require.NoError(t, err)
	return data
}

func TestFormatMessage(t *testing.T) {
	msg := alert.FormatMessage(testReading(t, "Ban Suan", "Chon Buri", 75))

	assert.True(t, strings.HasPrefix(msg, "🟡 <b>ปานกลาง (Moderate)</b>\n\n"))
	assert.Contains(t, msg, "📍 Ban Suan, Chon Buri\n")
	assert.Contains(t, msg, "AQI <b>75</b> · PM2.5 23 µg/m³\n")
	assert.Contains(t, msg, "🌡️ 31°C · 💧 72%\n\n")
	assert.True(t, strings.HasSuffix(msg, airquality.LevelModerate.HealthWarning()))
}

func TestFormatMessage_EmptyStateAndEscaping(t *testing.T) {
	msg := alert.FormatMessage(testReading(t, "<Bang & Saen>", "", 20))

	assert.Contains(t, msg, "📍 &lt;Bang &amp; Saen&gt;\n")
	assert.Contains(t, msg, airquality.LevelGood.Emoji())
}

func TestNotifyAirQuality_Execute(t *testing.T) {
	gw := &fakeGateway{}
	notify := alert.NewNotifyAirQuality(alert.NotifyConfig{Gateway: gw})

	data := testReading(t, "Ban Suan", "Chon Buri", 160)
	require.NoError(t, notify.Execute(context.Background(), "12345", data))

	require.Len(t, gw.sent, 1)
	assert.Equal(t, "12345", gw.sent[0].channelID)
	assert.Equal(t, alert.FormatMessage(data), gw.sent[0].text)
	assert.NotContains(t, gw.sent[0].text, "🕐")
}

func TestNotifyAirQuality_BroadcastAddsTimestamp(t *testing.T) {
	gw := &fakeGateway{}
	bangkok := time.FixedZone("ICT", 7*60*60)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 15, 1, 0, 0, 0, time.UTC))
	notify := alert.NewNotifyAirQuality(alert.NotifyConfig{Gateway: gw, Clock: clock, Timezone: bangkok})

	data := testReading(t, "Ban Suan", "Chon Buri", 75)
	require.NoError(t, notify.Broadcast(context.Background(), "@channel", data))

	require.Len(t, gw.sent, 1)
	assert.Equal(t, alert.FormatMessage(data)+"\n\n🕐 15/01/2026 08:00", gw.sent[0].text)
}

func TestNotifyAirQuality_PropagatesSendError(t *testing.T) {
	sendErr := &alert.SendError{ChannelID: "12345", Status: "http 403"}
	notify := alert.NewNotifyAirQuality(alert.NotifyConfig{Gateway: &fakeGateway{err: sendErr}})

	err := notify.Execute(context.Background(), "12345", testReading(t, "X", "Y", 10))
	assert.Same(t, sendErr, err)
	assert.ErrorIs(t, err, alert.ErrSendFailed)
}

func TestSendError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &alert.SendError{ChannelID: "@channel", Status: "request failed", Err: cause}

	assert.ErrorIs(t, err, alert.ErrSendFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "send to @channel failed: request failed: connection reset", err.Error())
}

func TestGatewayFunc(t *testing.T) {
	var got string
	gw := alert.GatewayFunc(func(_ context.Context, channelID, text string) error {
		got = channelID + ":" + text
		return nil
	})

	require.NoError(t, gw.Send(context.Background(), "1", "hi"))
	assert.Equal(t, "1:hi", got)
}
