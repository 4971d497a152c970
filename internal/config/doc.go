// SPDX-License-Identifier: MIT

// Package config provides configuration management for microblog.
//
// Precedence is ENV > config file > defaults. Every environment key uses
// the MICROBLOG_ prefix; a handful of classic un-prefixed names
// (MAIL_SERVER, MAIL_PORT, DATABASE_URL, SECRET_KEY, ...) are accepted
// as aliases so older deployment guides keep working.
package config
