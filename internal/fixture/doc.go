// Package fixture loads scenario files and hands out their test cases.
//
// A scenario describes one form (where it lives, how to open and submit it,
// which database table it writes) and an ordered list of cases. Scenario
// files can be YAML, CUE, or YAML whose cases live in a spreadsheet:
//
//	name: items_calculated
//	page:
//	  url: zabbix.php?action=item.list&context=host&filter_hostids[]=40001
//	  open: Create item
//	  dialog: true
//	  target_table: items
//	  unique_key: key_
//	  unique_field: Key
//	  titles:
//	    create: {success: Item added, failure: Cannot add item}
//	hash_queries:
//	  - {table: items, order_by: itemid}
//	required_fields: [Formula]
//	defaults:
//	  Type: Calculated
//	cases:
//	  - name: average over 99h
//	    expected: pass
//	    fields: {Name: "Calc {unique}", Key: "calc.{unique}", Formula: "avg(/host/trap,99h)"}
//	  - name: raise the interval
//	    action: update
//	    target: "Calc {unique:0}"
//	    fields: {Update interval: 5m}
//
// "{unique}" becomes the token of the case it appears in; "{unique:N}"
// becomes the token of case N, here the item the first case created.
//
// Loading only checks syntax. Provide performs the shape checks and returns
// a *ConfigurationError naming the case and key at fault.
package fixture
