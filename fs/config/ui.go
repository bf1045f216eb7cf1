// Textual user interface parts of the config system

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ThierryZhou/go-s3connector/s3"
)

var stdin = bufio.NewReader(os.Stdin)

// ReadLine reads some input
var ReadLine = func() string {
	line, err := stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		log.Fatalf("Failed to read line: %v", err)
	}
	return strings.TrimSpace(line)
}

// ReadNonEmptyLine prints prompt and calls Readline until non empty
func ReadNonEmptyLine(prompt string) string {
	result := ""
	for result == "" {
		fmt.Print(prompt)
		result = strings.TrimSpace(ReadLine())
	}
	return result
}

// CommandDefault - choose one.  If return is pressed then it will
// chose the defaultIndex if it is >= 0
func CommandDefault(commands []string, defaultIndex int) byte {
	opts := []string{}
	for i, text := range commands {
		def := ""
		if i == defaultIndex {
			def = " (default)"
		}
		fmt.Printf("%c) %s%s\n", text[0], text[1:], def)
		opts = append(opts, text[:1])
	}
	optString := strings.Join(opts, "")
	optHelp := strings.Join(opts, "/")
	for {
		fmt.Printf("%s> ", optHelp)
		result := strings.ToLower(ReadLine())
		if len(result) == 0 {
			if defaultIndex >= 0 {
				return optString[defaultIndex]
			}
			fmt.Printf("This value is required and it has no default.\n")
		} else if len(result) == 1 {
			i := strings.Index(optString, string(result[0]))
			if i >= 0 {
				return result[0]
			}
			fmt.Printf("This value must be one of the following characters: %s.\n", strings.Join(opts, ", "))
		} else {
			fmt.Printf("This value must be a single character, one of the following: %s.\n", strings.Join(opts, ", "))
		}
	}
}

// Confirm asks the user for Yes or No and returns true or false
//
// If the user presses enter then the Default will be used
func Confirm(Default bool) bool {
	defaultIndex := 0
	if !Default {
		defaultIndex = 1
	}
	return CommandDefault([]string{"yYes", "nNo"}, defaultIndex) == 'y'
}

// Choose one of the choices, or default, or type a new string if newOk is set
func Choose(what string, kind string, choices []string, defaultValue string, newOk bool) string {
	valueDescription := "an existing"
	if newOk {
		valueDescription = "your own"
	}
	fmt.Printf("Choose a number from below, or type in %s %s.\n", valueDescription, kind)
	for i, choice := range choices {
		fmt.Printf("%2d / %s\n", i+1, choice)
	}
	if defaultValue != "" {
		fmt.Printf("Press Enter for the default (%s).\n", defaultValue)
	}
	for {
		fmt.Printf("%s> ", what)
		result := ReadLine()
		i, err := strconv.Atoi(result)
		if err == nil {
			if i >= 1 && i <= len(choices) {
				return choices[i-1]
			}
			fmt.Printf("No choices with this number.\n")
			continue
		}
		for _, v := range choices {
			if result == v {
				return result
			}
		}
		switch {
		case result == "" && defaultValue != "":
			return defaultValue
		case result == "":
			fmt.Printf("This value is required and it has no default.\n")
		case newOk:
			return result
		default:
			fmt.Printf("This value must match %s value.\n", valueDescription)
		}
	}
}

// Enter prompts for an input value of a specified type
func Enter(what string, kind string, defaultValue string, required bool) string {
	// Empty input is allowed if not required is set, or if
	// required is set but there is a default value to use.
	fmt.Printf("Enter a %s.", kind)
	if defaultValue != "" {
		fmt.Printf(" Press Enter for the default (%s).\n", defaultValue)
	} else if !required {
		fmt.Println(" Press Enter to leave empty.")
	} else {
		fmt.Println()
	}
	for {
		fmt.Printf("%s> ", what)
		result := ReadLine()
		if result != "" {
			return result
		}
		if defaultValue != "" {
			return defaultValue
		}
		if !required {
			return result
		}
		fmt.Printf("This value is required and it has no default.\n")
	}
}

// ChooseNumber asks the user to enter a number between min and max
// inclusive prompting them with what. Empty input picks defaultValue when
// it lies in range.
func ChooseNumber(what string, defaultValue, min, max int) int {
	hasDefault := defaultValue >= min && defaultValue <= max
	if hasDefault {
		fmt.Printf("Press Enter for the default (%d).\n", defaultValue)
	}
	for {
		fmt.Printf("%s> ", what)
		result := ReadLine()
		if result == "" && hasDefault {
			return defaultValue
		}
		i, err := strconv.Atoi(result)
		if err != nil {
			fmt.Printf("Bad number: %v\n", err)
			continue
		}
		if i < min || i > max {
			fmt.Printf("Out of range - %d to %d inclusive\n", min, max)
			continue
		}
		return i
	}
}

var regions = []string{
	"eu-central-1",
	"eu-west-1",
	"us-east-1",
	"us-west-2",
	"ap-southeast-1",
}

// Interactive walks the user through every setting, starting from cur.
func Interactive(cur *Config) *Config {
	c := *cur

	c.Endpoint = Enter("endpoint", "S3 endpoint URL (empty for AWS)", c.Endpoint, false)
	def := c.Region
	if def == "" {
		def = regions[0]
	}
	c.Region = Choose("region", "region", regions, def, true)
	c.AccessKey = Enter("access_key", "access key ID (empty for the AWS credential chain)", c.AccessKey, false)
	if c.AccessKey != "" {
		c.SecretKey = ReadNonEmptyLine("secret_key> ")
	} else {
		c.SecretKey = ""
	}

	fmt.Println("Use path-style addressing (needed by most S3-compatible servers)?")
	pathStyle := Confirm(c.PathStyle == nil || *c.PathStyle)
	c.PathStyle = &pathStyle

	fmt.Println("Maximum attempts per request (1-20).")
	attempts := c.MaxAttempts
	if attempts == 0 {
		attempts = s3.DefaultOption().MaxAttempts
	}
	c.MaxAttempts = ChooseNumber("max_attempts", attempts, 1, 20)

	return &c
}
