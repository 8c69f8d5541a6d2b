package mcpserver

// InputFormatContract describes the tag and time input forms the valet
// tools accept, for conversational front ends.
const InputFormatContract = `# tagtrack Input Format Contract

## Tags

A tag identifier is 1-3 letters followed by a 1-2 digit number, for
example ` + "`wa3`" + ` or ` + "`be12`" + `. The first letter is the tag colour code.

- Case does not matter: ` + "`WA3`" + `, ` + "`wa3`" + `, and ` + "`Wa03`" + ` are the same tag.
- Leading zeros in the number are ignored.
- Brackets and whitespace around the tag are ignored.

## Times

Times are clock times for today:

- ` + "`HH:MM`" + ` or ` + "`H:MM`" + ` (24-hour), e.g. ` + "`09:14`" + ` or ` + "`9:14`" + `
- Digits without a separator: ` + "`914`" + ` or ` + "`0914`" + `
- The word ` + "`now`" + ` (or omitting the time) uses the current time.

Times after the current clock time are rejected unless the force flag
is set; so are check-ins before the day's opening time.

## Confirmation

Destroying the check-out of a long ("meaningful") stay is refused until
the call is repeated with confirmation, protecting real records from
accidental deletion.
`
