// rectui is an operator console for a running remote daemon: it lists
// live sessions, lets an operator send a command to one, interrupt it, or
// close it, refreshing periodically. Its layout (a session table, a
// status bar, a Pages container, single-key bindings) follows anvillm's
// cmd/anvillm TUI, rebuilt here against REC's HTTP API instead of a 9P
// filesystem connection.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type sessionInfo struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	State        string `json:"state"`
	CreatedAt    string `json:"created_at"`
	LastActivity string `json:"last_activity"`
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{baseURL: baseURL, token: token, http: &http.Client{Timeout: 15 * time.Second}}
}

func (c *client) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, string(data))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func (c *client) listSessions() ([]sessionInfo, error) {
	var resp struct {
		Sessions []sessionInfo `json:"sessions"`
	}
	if err := c.do(http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *client) createSession(name string) error {
	return c.do(http.MethodPost, "/create_session", map[string]string{"session": name}, nil)
}

func (c *client) closeSession(name string) error {
	return c.do(http.MethodPost, "/close_session", map[string]string{"session": name}, nil)
}

func (c *client) interruptSession(name string) error {
	return c.do(http.MethodPost, "/interrupt_session", map[string]string{"session": name}, nil)
}

type runResponse struct {
	Output        string `json:"output"`
	ExitCode      int    `json:"exit_code"`
	FailureReason string `json:"failure_reason"`
}

func (c *client) runInSession(name, command string) (*runResponse, error) {
	var resp runResponse
	err := c.do(http.MethodPost, "/run_in_session", map[string]string{"session": name, "command": command}, &resp)
	return &resp, err
}

var (
	app *tview.Application
	api *client

	sessionTable *tview.Table
	statusBar    *tview.TextView
	outputView   *tview.TextView
	pages        *tview.Pages

	sessions []sessionInfo
)

func main() {
	host := flag.String("host", "http://127.0.0.1:8000", "base URL of the remote daemon")
	token := flag.String("auth-token", "", "bearer token for the remote daemon")
	flag.Parse()

	if *token == "" {
		log.Fatal("--auth-token is required")
	}

	api = newClient(*host, *token)
	app = tview.NewApplication()

	setupUI()
	go refreshLoop()

	if err := app.SetRoot(pages, true).EnableMouse(true).Run(); err != nil {
		log.Fatal(err)
	}
}

func setupUI() {
	sessionTable = tview.NewTable().SetBorders(false).SetSelectable(true, false).SetFixed(1, 0)
	sessionTable.SetBorder(true).SetTitle(" Sessions ").SetTitleAlign(tview.AlignLeft)

	statusBar = tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignLeft)
	statusBar.SetBorder(true).SetTitle(" Status ")
	setStatus("connected to " + api.baseURL)

	outputView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	outputView.SetBorder(true).SetTitle(" Output ")

	body := tview.NewFlex().
		AddItem(sessionTable, 0, 1, true).
		AddItem(outputView, 0, 2, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(statusBar, 3, 0, false)

	pages = tview.NewPages()
	pages.AddPage("main", layout, true, true)

	sessionTable.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q':
				app.Stop()
				return nil
			case 'r':
				refreshSessions()
				return nil
			case 'n':
				showCreateDialog()
				return nil
			case 'c':
				closeSelected()
				return nil
			case 'i':
				interruptSelected()
				return nil
			case ' ':
				showCommandDialog()
				return nil
			}
		}
		return event
	})

	refreshSessions()
}

func setStatus(msg string) {
	app.QueueUpdateDraw(func() {
		statusBar.SetText(fmt.Sprintf("[white]%s", msg))
	})
}

func refreshLoop() {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		refreshSessions()
	}
}

func refreshSessions() {
	list, err := api.listSessions()
	if err != nil {
		setStatus(fmt.Sprintf("[red]refresh failed: %v", err))
		return
	}
	sessions = list

	app.QueueUpdateDraw(func() {
		sessionTable.Clear()
		headers := []string{"NAME", "KIND", "STATE", "LAST ACTIVITY"}
		for col, h := range headers {
			sessionTable.SetCell(0, col, tview.NewTableCell(h).SetSelectable(false).SetTextColor(tcell.ColorYellow))
		}
		for row, s := range sessions {
			sessionTable.SetCell(row+1, 0, tview.NewTableCell(s.Name))
			sessionTable.SetCell(row+1, 1, tview.NewTableCell(s.Kind))
			sessionTable.SetCell(row+1, 2, tview.NewTableCell(s.State))
			sessionTable.SetCell(row+1, 3, tview.NewTableCell(s.LastActivity))
		}
	})
}

func selectedSession() (string, bool) {
	row, _ := sessionTable.GetSelection()
	if row <= 0 || row > len(sessions) {
		return "", false
	}
	return sessions[row-1].Name, true
}

func showCreateDialog() {
	form := tview.NewForm()
	name := ""
	form.AddInputField("Session name", "", 32, nil, func(text string) { name = text })
	form.AddButton("Create", func() {
		pages.RemovePage("dialog")
		if name == "" {
			return
		}
		if err := api.createSession(name); err != nil {
			setStatus(fmt.Sprintf("[red]create failed: %v", err))
			return
		}
		refreshSessions()
	})
	form.AddButton("Cancel", func() { pages.RemovePage("dialog") })
	form.SetBorder(true).SetTitle(" New session ")
	pages.AddPage("dialog", centered(form, 40, 7), true, true)
}

func showCommandDialog() {
	name, ok := selectedSession()
	if !ok {
		return
	}
	form := tview.NewForm()
	command := ""
	form.AddInputField("Command", "", 60, nil, func(text string) { command = text })
	form.AddButton("Run", func() {
		pages.RemovePage("dialog")
		if command == "" {
			return
		}
		go func() {
			resp, err := api.runInSession(name, command)
			if err != nil {
				setStatus(fmt.Sprintf("[red]run failed: %v", err))
				return
			}
			app.QueueUpdateDraw(func() {
				fmt.Fprintf(outputView, "[yellow]$ %s\n[white]%s\n[grey]exit=%d %s\n\n",
					command, resp.Output, resp.ExitCode, resp.FailureReason)
			})
		}()
	})
	form.AddButton("Cancel", func() { pages.RemovePage("dialog") })
	form.SetBorder(true).SetTitle(fmt.Sprintf(" Run in %s ", name))
	pages.AddPage("dialog", centered(form, 70, 7), true, true)
}

func closeSelected() {
	name, ok := selectedSession()
	if !ok {
		return
	}
	if err := api.closeSession(name); err != nil {
		setStatus(fmt.Sprintf("[red]close failed: %v", err))
		return
	}
	refreshSessions()
}

func interruptSelected() {
	name, ok := selectedSession()
	if !ok {
		return
	}
	if err := api.interruptSession(name); err != nil {
		setStatus(fmt.Sprintf("[red]interrupt failed: %v", err))
		return
	}
	setStatus(fmt.Sprintf("sent interrupt to %s", name))
}

func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}
