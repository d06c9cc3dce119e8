package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/authkit-go/authkit/oidc"
	"github.com/authkit-go/authkit/oidc/callback"
)

// List of required configuration environment variables
const (
	clientId     = "OIDC_CLIENT_ID"
	clientSecret = "OIDC_CLIENT_SECRET"
	issuer       = "OIDC_ISSUER"
	port         = "OIDC_PORT"
)

const attemptExp = 2 * time.Minute

func envConfig() (map[string]string, error) {
	// a .env file is optional; the process environment always wins
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to load .env file: %w", err)
	}
	env := map[string]string{
		clientId:     os.Getenv(clientId),
		clientSecret: os.Getenv(clientSecret),
		issuer:       os.Getenv(issuer),
		port:         os.Getenv(port),
	}
	for k, v := range env {
		if v == "" {
			return nil, fmt.Errorf("%s is empty", k)
		}
	}
	return env, nil
}

func main() {
	env, err := envConfig()
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	// handle ctrl-c while waiting for the callback
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt)
	defer signal.Stop(sigintCh)

	redirectUrl := fmt.Sprintf("http://localhost:%s/callback", env[port])
	pc, err := oidc.NewConfig(env[issuer], env[clientId], oidc.ClientSecret(env[clientSecret]), []oidc.Alg{oidc.RS256}, redirectUrl,
		oidc.WithScopes([]string{"profile", "email"}))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	c, err := oidc.NewClient(pc)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}
	defer c.Done()

	state, err := oidc.NewId(oidc.WithPrefix("st"))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}
	nonce, err := oidc.NewId(oidc.WithPrefix("n"))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	authUrl, err := c.AuthURL(context.Background(), state, oidc.WithNonce(nonce))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting auth url: %s", err)
		return
	}

	successFn, successCh := success()
	errorFn, failedCh := failed()
	callbackFn := callback.AuthCode(context.Background(), c, successFn, errorFn)

	// Set up callback handler
	http.HandleFunc("/callback", callbackFn)

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%s", env[port]))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}
	defer listener.Close()

	// Open the default browser to the callback URL.
	fmt.Fprintf(os.Stderr, "Complete the login via your OIDC provider. Launching browser to:\n\n    %s\n\n\n", authUrl)
	if err := openURL(authUrl); err != nil {
		fmt.Fprintf(os.Stderr, "Error attempting to automatically open browser: '%s'.\nPlease visit the authorization URL manually.", err)
	}

	srvCh := make(chan error)
	// Start local server
	go func() {
		err := http.Serve(listener, nil)
		if err != nil && err != http.ErrServerClosed {
			srvCh <- err
		}
	}()

	// Wait for either the callback to finish, SIGINT to be received or up to 2 minutes
	select {
	case err := <-srvCh:
		fmt.Fprintf(os.Stderr, "server closed with error: %s", err.Error())
		return
	case resp := <-successCh:
		if resp.Error != nil {
			fmt.Fprintf(os.Stderr, "channel received success with error: %s", resp.Error)
			return
		}
		printSession(resp.Session)
		printClaims(resp.Session)
		return
	case err := <-failedCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "channel received error: %s", err)
			return
		}
		fmt.Fprint(os.Stderr, "missing error from error channel.  try again?\n")
		return
	case <-sigintCh:
		fmt.Fprintf(os.Stderr, "Interrupted")
		return
	case <-time.After(attemptExp):
		fmt.Fprintf(os.Stderr, "Timed out waiting for response from provider")
		return
	}
}

type successResp struct {
	Session *oidc.Session // Session is populated when the callback successfully exchanges the auth code.
	Error   error         // Error is populated when there's an error during the callback
}

func success() (callback.SuccessResponseFunc, <-chan successResp) {
	doneCh := make(chan successResp)
	return func(state string, s *oidc.Session, w http.ResponseWriter, req *http.Request) {
		var responseErr error
		defer func() {
			doneCh <- successResp{s, responseErr}
			close(doneCh)
		}()
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(successHTML)); err != nil {
			responseErr = err
			fmt.Fprintf(os.Stderr, "error writing successful response: %s", err)
		}
	}, doneCh
}

func failed() (callback.ErrorResponseFunc, <-chan error) {
	doneCh := make(chan error)
	return func(state string, r *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		var responseErr error
		defer func() {
			doneCh <- responseErr
			close(doneCh)
		}()

		if e != nil {
			fmt.Fprintf(os.Stderr, "callback error: %s", e.Error())
			responseErr = e
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r != nil {
			fmt.Fprintf(os.Stderr, "callback error from oidc provider: %s", r)
			responseErr = fmt.Errorf("callback error from oidc provider: %s", r)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		responseErr = errors.New("Unknown error from callback")
	}, doneCh
}

// openURL opens the specified URL in the default browser of the user.
// source: https://github.com/hashicorp/vault-plugin-auth-jwt
func openURL(url string) error {
	var cmd string
	var args []string

	switch {
	case "windows" == runtime.GOOS || isWSL():
		cmd = "cmd.exe"
		args = []string{"/c", "start"}
		url = strings.Replace(url, "&", "^&", -1)
	case "darwin" == runtime.GOOS:
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}

// isWSL tests if the binary is being run in Windows Subsystem for Linux
// source: https://github.com/hashicorp/vault-plugin-auth-jwt
func isWSL() bool {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		return false
	}
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to read /proc/version.\n")
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

type respSession struct {
	IdToken      string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

func printClaims(s *oidc.Session) {
	claims := s.Claims()
	data, err := json.MarshalIndent(claims, "", "    ")
	if err != nil {
		fmt.Fprint(os.Stderr, err)
		return
	}
	fmt.Fprintf(os.Stderr, "Identity claims:%s\n", data)
}

func printSession(s *oidc.Session) {
	data, err := json.MarshalIndent(printableSession(s), "", "    ")
	if err != nil {
		fmt.Fprint(os.Stderr, err)
		return
	}
	fmt.Fprintf(os.Stderr, "channel received success.\nSession:%s\n", data)
}

// printableSession is needed because the oidc.Session's token types redact
// themselves when marshaled
func printableSession(s *oidc.Session) respSession {
	return respSession{
		IdToken:      string(s.IdToken()),
		AccessToken:  string(s.AccessToken()),
		RefreshToken: string(s.RefreshToken()),
		Expiry:       s.Expiry(),
	}
}
