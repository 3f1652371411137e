package arvento

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gps-hub/gps-hub-server/internal/observability"
	"github.com/gps-hub/gps-hub-server/pkg/soap"
)

const namespace = "http://www.intelli-track.com/"

const (
	methodNodeFromPlate = "GetNodeFromLicensePlate"
	methodVehicleStatus = "GetVehicleStatusByNodeV3"
)

// HTTPClient 底层 HTTP 客户端接口
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transport 执行 SOAP 方法调用
type Transport interface {
	Call(ctx context.Context, method string, params []soap.Param) (*Result, error)
}

// Result 单次 SOAP 调用的解码结果
type Result struct {
	Text   string
	Packet *StatusPacket
	Fields map[string]interface{}
}

// StatusPacket GetVehicleStatusByNodeV3 返回的最后报文
type StatusPacket struct {
	Node        string `xml:"strNode"`
	GMTDateTime string `xml:"dtGMTDateTime"`
	Latitude    string `xml:"dLatitude"`
	Longitude   string `xml:"dLongitude"`
	Speed       string `xml:"dSpeed"`
	Address     string `xml:"strAddress"`
	Course      string `xml:"nCourse"`
	Odometer    string `xml:"dOdometer"`
	Altitude    string `xml:"nAltitude"`
}

// Field 按报文字段名取值
func (r *Result) Field(name string) string {
	if r.Packet != nil {
		switch name {
		case "strNode":
			return r.Packet.Node
		case "dtGMTDateTime":
			return r.Packet.GMTDateTime
		case "dLatitude":
			return r.Packet.Latitude
		case "dLongitude":
			return r.Packet.Longitude
		case "dSpeed":
			return r.Packet.Speed
		case "strAddress":
			return r.Packet.Address
		case "nCourse":
			return r.Packet.Course
		case "dOdometer":
			return r.Packet.Odometer
		case "nAltitude":
			return r.Packet.Altitude
		}
		return ""
	}

	fields := r.Fields
	if nested, ok := fields["LastPacket"].(map[string]interface{}); ok {
		fields = nested
	}
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

type statusEnvelope struct {
	Body struct {
		Response struct {
			Result struct {
				LastPacket StatusPacket `xml:"LastPacket"`
			} `xml:"GetVehicleStatusByNodeV3Result"`
		} `xml:"GetVehicleStatusByNodeV3Response"`
	} `xml:"Body"`
}

// httpTransport 通过 HTTP POST 调用报表服务
type httpTransport struct {
	endpoint string
	auth     []soap.Param
	http     HTTPClient
}

func newHTTPTransport(cfg Config, client HTTPClient) *httpTransport {
	// WSDL 地址转换为服务端点
	endpoint := strings.ReplaceAll(cfg.Host, "?wsdl", "")
	endpoint = strings.ReplaceAll(endpoint, "?WSDL", "")

	return &httpTransport{
		endpoint: endpoint,
		auth: []soap.Param{
			{Name: "Username", Value: cfg.Username},
			{Name: "PIN1", Value: cfg.PIN1},
			{Name: "PIN2", Value: cfg.PIN2},
		},
		http: client,
	}
}

// Call 构造信封、发送请求并解码响应
func (t *httpTransport) Call(ctx context.Context, method string, params []soap.Param) (res *Result, err error) {
	defer func(start time.Time) {
		observability.ObserveProviderCall("arvento", method, start, err)
	}(time.Now())

	// 认证参数排在方法参数之前
	all := make([]soap.Param, 0, len(t.auth)+len(params))
	all = append(all, t.auth...)
	all = append(all, params...)

	envelope := soap.Envelope(namespace, method, all)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().
			Str("provider", "arvento").
			Str("method", method).
			Int("status", resp.StatusCode).
			Msg("SOAP request failed")
		return nil, fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, excerpt(body))
	}

	return decodeResponse(method, body)
}

// decodeResponse 先按已知结构解码,失败再退回通用解析
func decodeResponse(method string, body []byte) (*Result, error) {
	if method == methodVehicleStatus {
		var env statusEnvelope
		if xml.Unmarshal(body, &env) == nil {
			packet := env.Body.Response.Result.LastPacket
			if packet != (StatusPacket{}) {
				return &Result{Packet: &packet}, nil
			}
		}
	}

	root, err := soap.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	elem := root.Find(method + "Result")
	if elem == nil {
		elem = root.Find("LastPacket")
	}
	if elem == nil {
		return nil, nil
	}
	return &Result{Text: elem.Text, Fields: elem.Map()}, nil
}

func excerpt(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	return s
}
