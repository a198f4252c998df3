// Command kobukictl is an interactive shell for driving and inspecting a
// running kobukid daemon over its HTTP control surface.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/kobuki-driver/kobuki/comms"
)

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *client) login(password string) error {
	body, _ := json.Marshal(comms.LoginPayload{Password: password})
	resp, err := c.http.Post(c.baseURL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Status)
	}
	var payload comms.JWTPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	c.token = payload.SignedToken
	return nil
}

func (c *client) getJSON(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) postMotion(vx, wz float64) error {
	body, _ := json.Marshal(comms.MotionPayload{Vx: vx, Wz: wz})
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/command/motion?jwt="+c.token, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("motion command failed: %s", resp.Status)
	}
	return nil
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "kobukid HTTP address")
	password := flag.String("password", "", "operator password for control commands")
	flag.Parse()

	c := &client{baseURL: *addr, http: http.DefaultClient}
	if *password != "" {
		if err := c.login(*password); err != nil {
			fmt.Println("warning: login failed, control commands will be rejected:", err)
		}
	}

	shell := ishell.New()
	shell.SetPrompt("kobuki> ")
	shell.Println("kobukictl connected to " + *addr)

	shell.AddCmd(&ishell.Cmd{
		Name: "move",
		Help: "move <vx> <wz>: command a linear/angular velocity",
		Func: func(ctx *ishell.Context) {
			if len(ctx.Args) != 2 {
				ctx.Println("usage: move <vx> <wz>")
				return
			}
			vx, err1 := strconv.ParseFloat(ctx.Args[0], 64)
			wz, err2 := strconv.ParseFloat(ctx.Args[1], 64)
			if err1 != nil || err2 != nil {
				ctx.Println("vx and wz must be numbers")
				return
			}
			if err := c.postMotion(vx, wz); err != nil {
				ctx.Println("error:", err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "stop: command zero velocity",
		Func: func(ctx *ishell.Context) {
			if err := c.postMotion(0, 0); err != nil {
				ctx.Println("error:", err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "sensor",
		Help: "sensor: print the latest default sensor sub-record",
		Func: func(ctx *ishell.Context) {
			var data map[string]interface{}
			if err := c.getJSON("/sensors/default", &data); err != nil {
				ctx.Println("error:", err)
				return
			}
			ctx.Println(data)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "joint",
		Help: "joint <wheel_left|wheel_right>: print one wheel's joint state",
		Func: func(ctx *ishell.Context) {
			if len(ctx.Args) != 1 {
				ctx.Println("usage: joint <wheel_left|wheel_right>")
				return
			}
			var data map[string]interface{}
			if err := c.getJSON("/joint_state?name="+ctx.Args[0], &data); err != nil {
				ctx.Println("error:", err)
				return
			}
			ctx.Println(data)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "mode",
		Help: "mode: print whether the connected daemon is authenticated for control",
		Func: func(ctx *ishell.Context) {
			if c.token == "" {
				ctx.Println("read-only: no operator token")
			} else {
				ctx.Println("control-enabled")
			}
		},
	})

	shell.Run()
}
