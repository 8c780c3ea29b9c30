// Package protocol implements parsing and serialising of the packets that the
// Moep server exchanges with its clients.
//
// The protocol aims to be:
//
// - easy to implement in any client
// - human readable, so a session can be followed with netcat
// - self describing, every line carries its own type tag
//
// === General Syntax
//
// - one packet per line, lines are `\r\n` delimited (a bare `\n` is accepted)
// - a line starts with a two digit packet tag, followed by a JSON object
//   holding the packet payload
// - payload keys are case sensitive
//
// For example
//   ```
//     > 01{"name":"Alice"}\r\n
//     < 01{"name":"Alice","accepted":true}\r\n
//   ```
//
// The first line is the login sent by the client, the second is the login
// reply from the server.
//
// === Packets
//
//   ```
//   01 Login              {"name":string, "accepted":bool?}     both
//   02 Kick               {"reason":string}                     server
//   03 TurnNotice         {"yourTurn":bool}                     server
//   04 MoveValidity       {"valid":bool, "reason":int}          server
//   05 MoepButton         {"inTime":bool?}                      both
//   06 ColorWish          {"color":int}                         both
//   07 Text               {"text":string}                       server
//   08 PlayerServerAction {"name":string, "action":0|1}         server
//   09 GameOver           {"ended":bool}                        server
//   10 PlayCard           {"card":{"color":int,"number":int}}   client
//   11 HandCard           {"card":{"color":int,"number":int}}   server
//   12 DiscardPileCard    {"card":{"color":int,"number":int}}   server
//   13 DrawCard           {}                                    client
//   ```
//
// === Color wishes
//
// A color wish is the only exchange where the server waits for an answer.
// The server asks with a color of -1, the client answers with the chosen
// color.
//
//   ```
//     < 06{"color":-1}\r\n
//     > 06{"color":2}\r\n
//   ```
//
// === Errors
//
// Lines that cannot be parsed are reported as ErrUnrecognized. They are
// never fatal to a connection.
package protocol
