package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"collabweave/document"
	"collabweave/weave"
)

const consoleHelp = `commands:
  print                       show paragraphs with their numbers
  append <text>               add text to the end of the last paragraph
  insert <para> <pos> <text>  insert text before position pos
  replace <para> <pos> <word> replace the item at pos
  remove <para> <pos>         remove the item at pos
  para [text]                 start a new paragraph
  status                      online or offline, and the site
  save                        store the document locally
  quit`

var errUsage = errors.New("usage error, try help")

// runConsole reads commands from in until quit or EOF.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, s *session) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(out, consoleHelp)
		case "status":
			fmt.Fprintln(out, s.status())
		case "save":
			if err := s.save(ctx); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		default:
			if err := execute(ctx, s.editor(), line, out); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return sc.Err()
}

// execute runs one editing command.
func execute(ctx context.Context, ed editor, line string, out io.Writer) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "print":
		return ed.View(func(d *document.Document) {
			for i, p := range paragraphs(d) {
				fmt.Fprintf(out, "[%d] %s\n", i, d.Text(p))
			}
		})

	case "append":
		return ed.Edit(ctx, func(d *document.Document) error {
			paras := paragraphs(d)
			if len(paras) == 0 {
				return errors.New("no paragraph")
			}
			return insertText(d, document.End(paras[len(paras)-1]), rest)
		})

	case "insert":
		p, pos, text, err := address(rest, true)
		if err != nil {
			return err
		}
		return ed.Edit(ctx, func(d *document.Document) error {
			seq, err := paragraph(d, p)
			if err != nil {
				return err
			}
			return insertText(d, document.At(seq, pos), text)
		})

	case "replace":
		p, pos, text, err := address(rest, true)
		if err != nil {
			return err
		}
		return ed.Edit(ctx, func(d *document.Document) error {
			seq, err := paragraph(d, p)
			if err != nil {
				return err
			}
			items := d.AddText(text)
			if len(items) != 1 {
				return fmt.Errorf("replace takes one word or symbol, got %d", len(items))
			}
			return d.Replace(document.At(seq, pos), items[0])
		})

	case "remove":
		p, pos, _, err := address(rest, false)
		if err != nil {
			return err
		}
		return ed.Edit(ctx, func(d *document.Document) error {
			seq, err := paragraph(d, p)
			if err != nil {
				return err
			}
			_, _, err = d.Remove(document.At(seq, pos))
			return err
		})

	case "para":
		return ed.Edit(ctx, func(d *document.Document) error {
			typ, ok := d.Local().FindType(document.TypeParagraph)
			if !ok {
				typ = d.CreateType(document.TypeParagraph, document.Type{Description: "paragraph"})
			}
			item, err := d.CreateSequence(typ)
			if err != nil {
				return err
			}
			if err := insertText(d, document.End(document.SequenceKey(item.Key)), rest); err != nil {
				return err
			}
			_, err = d.Insert(document.End(d.Root()), item)
			return err
		})
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

// address parses "<para> <pos> [text]".
func address(args string, withText bool) (int, int, string, error) {
	fields := strings.SplitN(args, " ", 3)
	if len(fields) < 2 || (withText && len(fields) < 3) {
		return 0, 0, "", errUsage
	}
	p, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, "", fmt.Errorf("paragraph %q: %w", fields[0], errUsage)
	}
	pos, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, "", fmt.Errorf("position %q: %w", fields[1], errUsage)
	}
	var text string
	if len(fields) == 3 {
		text = fields[2]
	}
	return p, pos, text, nil
}

func insertText(d *document.Document, tag document.Tag, text string) error {
	for _, item := range d.AddText(text) {
		next, err := d.Insert(tag, item)
		if err != nil {
			return err
		}
		tag = document.At(next.Seq, next.Index+1)
	}
	return nil
}

// paragraphs lists the paragraph sequences in reading order.
func paragraphs(d *document.Document) []document.SequenceKey {
	para, ok := d.Local().FindType(document.TypeParagraph)
	if !ok {
		return nil
	}
	var out []document.SequenceKey
	w := d.Walk()
	for n, ok := w.Next(); ok; n, ok = w.Next() {
		if n.Item.Kind == weave.KindSequence && n.Type == para {
			out = append(out, document.SequenceKey(n.Item.Key))
		}
	}
	return out
}

func paragraph(d *document.Document, i int) (document.SequenceKey, error) {
	paras := paragraphs(d)
	if i < 0 || i >= len(paras) {
		return 0, fmt.Errorf("no paragraph %d", i)
	}
	return paras[i], nil
}
