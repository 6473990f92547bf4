// Package lutron implements the Lutron integration protocol bridge for lutronbond.
//
// This package holds a persistent telnet-style session to each Lutron bridge,
// decodes the line-oriented event stream, and translates events into commands
// addressed back to the bus through a configured action table.
//
// # Architecture
//
//	┌──────────────┐  ~DEVICE,...  ┌──────────────┐  Event   ┌──────────────┐
//	│ Lutron Bridge│──────────────►│   Session    │─────────►│  controller  │
//	│  (telnet 23) │◄──────────────│  (this pkg)  │          │  event bus   │
//	└──────────────┘  #OUTPUT,...  └──────────────┘          └──────────────┘
//
// # Wire Format
//
// Inbound events are CRLF-terminated ASCII lines prefixed with "~":
//
//	~DEVICE,16,2,3        (keypad 16, button 1, press)
//	~OUTPUT,16,1,75.00    (output 16, set level to 75%)
//
// Outbound commands use "#" instead:
//
//	#DEVICE,2,4,3
//	#OUTPUT,1,1,75
//
// # Login
//
// The bridge prompts with "login: ", "password: " and finally "GNET> ".
// Session.Login answers the first two with the configured credentials and
// waits for the third.
//
// # Translation
//
// An ActionTable maps component → action → intent. BuildCommand resolves an
// intent against the four legal combinations (DEVICE/OUTPUT event ×
// DEVICE/OUTPUT command). OUTPUT-sourced events use a further table keyed by
// the event's parameter string.
//
// # Thread Safety
//
// Session, Registry and the handlers returned by NewHandler are safe for
// concurrent use. Event, Command and ActionTable are immutable values.
package lutron
