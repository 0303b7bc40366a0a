package command

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"msghub/internal/client"
	"msghub/internal/model"
	"msghub/internal/protocol"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session against the server",
	Long: `shell keeps one connection open and drives it with a small menu:
log in, read your inbox and outbox, send messages, and (for administrators)
manage accounts. The session ends on quit, on logout, or when the server
removes your account and disconnects you.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.Dial(serverAddr)
		if err != nil {
			return err
		}
		defer c.Close()

		shell := &shellSession{client: c, in: bufio.NewScanner(os.Stdin)}
		return shell.run()
	},
}

type shellSession struct {
	client *client.Client
	in     *bufio.Scanner
	user   *model.User
}

func (s *shellSession) prompt(label string) string {
	fmt.Print(label)
	if !s.in.Scan() {
		return ""
	}
	return strings.TrimSpace(s.in.Text())
}

func (s *shellSession) run() error {
	for {
		if s.user == nil {
			if done := s.loginMenu(); done {
				return nil
			}
			continue
		}
		if done, err := s.sessionMenu(); done {
			return err
		}
	}
}

// loginMenu reports true when the user chose to quit.
func (s *shellSession) loginMenu() bool {
	fmt.Println("\n1) login  2) quit")
	switch s.prompt("> ") {
	case "1":
		name := s.prompt("username: ")
		pass := s.prompt("password: ")
		u, status, err := s.client.Login(name, pass)
		if err != nil {
			fmt.Println("error:", err)
			return true
		}
		if status != protocol.StatusSuccess {
			fmt.Println("login failed:", status)
			return false
		}
		s.user = u
		fmt.Printf("Welcome, %s.\n", u.Name)
	case "2", "", "q", "quit":
		return true
	default:
		fmt.Println("unknown choice")
	}
	return false
}

// sessionMenu reports true when the session should end. A transport error
// normally means the server removed this account and closed the link.
func (s *shellSession) sessionMenu() (bool, error) {
	fmt.Println("\n1) inbox  2) outbox  3) send  4) logout  5) quit")
	if s.user.IsAdmin {
		fmt.Println("admin: 6) list users  7) add user  8) update user  9) remove user")
	}

	var err error
	switch s.prompt("> ") {
	case "1":
		err = s.showBox(s.client.Inbox, "from", func(m model.Message) string { return m.Sender.Username })
	case "2":
		err = s.showBox(s.client.Outbox, "to", func(m model.Message) string { return m.Receiver.Username })
	case "3":
		err = s.send()
	case "4":
		status, lerr := s.client.Logout()
		if lerr != nil {
			err = lerr
			break
		}
		if status == protocol.StatusSuccess {
			s.user = nil
		} else {
			fmt.Println("logout failed:", status)
		}
	case "5", "q", "quit":
		return true, nil
	case "6":
		err = s.admin(s.listUsers)
	case "7":
		err = s.admin(s.addUser)
	case "8":
		err = s.admin(s.updateUser)
	case "9":
		err = s.admin(s.removeUser)
	default:
		fmt.Println("unknown choice")
	}

	if err != nil {
		fmt.Println("connection lost:", err)
		return true, nil
	}
	return false, nil
}

func (s *shellSession) admin(op func() error) error {
	if !s.user.IsAdmin {
		fmt.Println("unknown choice")
		return nil
	}
	return op()
}

func (s *shellSession) showBox(fetch func() ([]model.Message, protocol.Status, error), direction string, counterpart func(model.Message) string) error {
	messages, status, err := fetch()
	if err != nil {
		return err
	}
	if status != protocol.StatusSuccess {
		fmt.Println("failed:", status)
		return nil
	}
	printMessages(messages, direction, counterpart)
	return nil
}

func (s *shellSession) send() error {
	receiver := s.prompt("to: ")
	title := s.prompt("title: ")
	content := s.prompt("content: ")

	status, err := s.client.SendMessage(s.user.Username, receiver, title, content)
	if errors.Is(err, client.ErrReservedDelimiter) {
		fmt.Println("message refused: text contains a reserved protocol token")
		return nil
	}
	if err != nil {
		return err
	}
	if status != protocol.StatusSuccess {
		fmt.Println("send failed:", status)
		return nil
	}
	fmt.Println("Message sent.")
	return nil
}

func (s *shellSession) listUsers() error {
	users, status, err := s.client.ListUsers()
	if err != nil {
		return err
	}
	if status != protocol.StatusSuccess {
		fmt.Println("failed:", status)
		return nil
	}
	for _, u := range users {
		role := ""
		if u.IsAdmin {
			role = " (admin)"
		}
		fmt.Printf("%s%s  %s %s  %s\n", u.Username, role, u.Name, u.Surname, u.Email)
	}
	return nil
}

func (s *shellSession) promptUser() (model.User, string) {
	u := model.User{
		Username:  s.prompt("username: "),
		Name:      s.prompt("name: "),
		Surname:   s.prompt("surname: "),
		Birthdate: s.prompt("birthdate (YYYY-MM-DD): "),
		Gender:    s.prompt("gender: "),
		Email:     s.prompt("email: "),
		Location:  s.prompt("location: "),
	}
	u.IsAdmin = strings.EqualFold(s.prompt("admin (y/n): "), "y")
	return u, s.prompt("password: ")
}

func (s *shellSession) addUser() error {
	u, pass := s.promptUser()
	status, err := s.client.AddUser(u, pass)
	if err != nil {
		return err
	}
	if status != protocol.StatusSuccess {
		fmt.Println("add failed:", status)
		return nil
	}
	fmt.Println("User created.")
	return nil
}

func (s *shellSession) updateUser() error {
	target := s.prompt("account to update: ")
	fmt.Println("new record:")
	u, pass := s.promptUser()
	status, err := s.client.UpdateUser(target, u, pass)
	if err != nil {
		return err
	}
	if status != protocol.StatusSuccess {
		fmt.Println("update failed:", status)
		return nil
	}
	fmt.Println("User updated.")
	return nil
}

func (s *shellSession) removeUser() error {
	target := s.prompt("account to remove: ")
	status, err := s.client.RemoveUser(target)
	if err != nil {
		return err
	}
	if status != protocol.StatusSuccess {
		fmt.Println("remove failed:", status)
		return nil
	}
	fmt.Println("User removed.")
	return nil
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
