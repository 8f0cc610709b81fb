package network

import (
	"net/http"
	"strings"

	logging "github.com/inconshreveable/log15"

	"github.com/laonet/laocoord/lib/common"
)

type HTTPErrorLogWriter struct {
	l logging.Logger
}

func (w HTTPErrorLogWriter) Write(b []byte) (int, error) {
	w.l.Error("error", "error", strings.TrimSpace(string(b)))
	return len(b), nil
}

type HTTPResponseLogWriter struct {
	w      http.ResponseWriter
	status int
	size   int
}

func NewHTTPResponseLogWriter(w http.ResponseWriter) *HTTPResponseLogWriter {
	return &HTTPResponseLogWriter{w: w}
}

func (l *HTTPResponseLogWriter) Header() http.Header {
	return l.w.Header()
}

func (l *HTTPResponseLogWriter) Write(b []byte) (int, error) {
	if l.status == 0 {
		l.status = http.StatusOK
	}

	size, err := l.w.Write(b)
	l.size += size
	return size, err
}

func (l *HTTPResponseLogWriter) WriteHeader(s int) {
	l.w.WriteHeader(s)
	l.status = s
}

func (l *HTTPResponseLogWriter) Status() int {
	if l.status == 0 {
		return http.StatusOK
	}
	return l.status
}

func (l *HTTPResponseLogWriter) Size() int {
	return l.size
}

func (l *HTTPResponseLogWriter) Flush() {
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
}

type HTTPLogHandler struct {
	log     logging.Logger
	handler http.Handler
}

var HeaderKeyFiltered []string = []string{
	"Content-Length",
	"Content-Type",
	"Accept",
	"Accept-Encoding",
	"User-Agent",
}

// ServeHTTP will log in 2 phase, when request received and response sent. This
// was derived from github.com/gorilla/handlers/handlers.go
func (l HTTPLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uid := common.GenerateUUID()

	uri := r.RequestURI
	if r.ProtoMajor == 2 && r.Method == "CONNECT" {
		uri = r.Host
	}
	if uri == "" {
		uri = r.URL.RequestURI()
	}

	header := http.Header{}
	for key, value := range r.Header {
		if _, found := common.InStringArray(HeaderKeyFiltered, key); found {
			continue
		}
		header[key] = value
	}

	l.log.Debug(
		"request",
		"content-length", r.ContentLength,
		"content-type", r.Header.Get("Content-Type"),
		"headers", header,
		"host", r.Host,
		"id", uid,
		"method", r.Method,
		"proto", r.Proto,
		"remote", r.RemoteAddr,
		"uri", uri,
		"user-agent", r.UserAgent(),
	)

	writer := NewHTTPResponseLogWriter(w)
	l.handler.ServeHTTP(writer, r)

	l.log.Debug(
		"response",
		"id", uid,
		"status", writer.Status(),
		"size", writer.Size(),
	)
}
