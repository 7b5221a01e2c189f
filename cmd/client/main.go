// A small terminal chat client, mostly useful for poking at a running server.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/namsral/flag"
)

type envelope struct {
	M string          `json:"m"`
	C json.RawMessage `json:"c,omitempty"`
}

type user struct {
	Name          string `json:"name"`
	UUID          string `json:"uuid"`
	AllowMessages bool   `json:"allow_messages"`
}

func send(conn *websocket.Conn, tag string, content any) error {
	var c json.RawMessage
	if content != nil {
		var err error
		if c, err = json.Marshal(content); err != nil {
			return err
		}
	}
	buf, err := json.Marshal(envelope{M: tag, C: c})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, buf)
}

func printPacket(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		fmt.Printf("?? %s\n", data)
		return
	}
	switch env.M {
	case "Message", "PrivateMessage":
		var p struct {
			AuthorInfo user   `json:"author_info"`
			Content    string `json:"content"`
		}
		if err := json.Unmarshal(env.C, &p); err != nil {
			break
		}
		if env.M == "PrivateMessage" {
			fmt.Printf("[%s -> me] %s\n", p.AuthorInfo.Name, p.Content)
		} else {
			fmt.Printf("<%s> %s\n", p.AuthorInfo.Name, p.Content)
		}
		return
	}
	fmt.Printf("-- %s %s\n", env.M, env.C)
}

func main() {
	var (
		url   string
		token string
		allow bool
	)
	flag.StringVar(&url, "url", "ws://127.0.0.1:8080/ws", "server websocket url")
	flag.StringVar(&token, "token", "", "JWT to log in with")
	flag.BoolVar(&allow, "allow", true, "accept private messages")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if token != "" {
		err = send(conn, "LoginJWT", map[string]any{
			"token":          token,
			"allow_messages": allow,
		})
		if err != nil {
			log.Fatal(err)
		}
	}

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Fatal(err)
			}
			printPacket(data)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
		case line == "/count":
			err = send(conn, "RequestUserCount", nil)
		case strings.HasPrefix(line, "/w "):
			receiver, content, ok := strings.Cut(strings.TrimPrefix(line, "/w "), " ")
			if !ok {
				fmt.Println("usage: /w <name> <message>")
				continue
			}
			err = send(conn, "PrivateMessage", map[string]string{
				"receiver": receiver,
				"content":  content,
			})
		case strings.HasPrefix(line, "/ban "):
			err = send(conn, "BanUser", map[string]string{"user": strings.TrimPrefix(line, "/ban ")})
		case strings.HasPrefix(line, "/unban "):
			err = send(conn, "UnbanUser", map[string]string{"user": strings.TrimPrefix(line, "/unban ")})
		default:
			err = send(conn, "Message", map[string]string{"content": line})
		}
		if err != nil {
			log.Fatal(err)
		}
	}
}
