package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulldump/goconfig"

	"github.com/fulldump/temporaldb/bootstrap"
	"github.com/fulldump/temporaldb/configuration"
)

var banner = `
 _____                                   _ ____  ____
|_   _|__ _ __ ___  _ __   ___  _ __ __ _| |  _ \| __ )
  | |/ _ \ '_ ` + "`" + ` _ \| '_ \ / _ \| '__/ _` + "`" + ` | | | | |  _ \
  | |  __/ | | | | | |_) | (_) | | | (_| | | |_| | |_) |
  |_|\___|_| |_| |_| .__/ \___/|_|  \__,_|_|____/|____/
                    |_|                   version ` + bootstrap.VERSION + `
`

func main() {

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		fmt.Println(banner)
	}

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	start, _ := bootstrap.Bootstrap(c)

	start()
}
